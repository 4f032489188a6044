package onboard

import (
	"math"
	"time"

	"github.com/felixge/pidctrl"
)

// Gains configures one PID stage. Min and Max bound both the output and the
// integral term; leaving both at zero means unbounded.
type Gains struct {
	P   float64 `yaml:"p"`
	I   float64 `yaml:"i"`
	D   float64 `yaml:"d"`
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (g Gains) limited() bool {
	return g.Min != 0 || g.Max != 0
}

// Stage is a PID controller fed with an error signal at a fixed period.
type Stage struct {
	gains Gains
	dt    time.Duration
	ctrl  *pidctrl.PIDController
}

func NewStage(gains Gains, dt time.Duration) *Stage {
	s := &Stage{gains: gains, dt: dt}
	s.Reset()
	return s
}

// Update advances the controller by one period with the given error and
// returns its output. The derivative acts on the change of the error.
func (s *Stage) Update(err float64) float64 {
	// pidctrl computes setpoint-value, so a zero setpoint and -err yields err
	return s.ctrl.UpdateDuration(-err, s.dt)
}

// Reset clears the integral and derivative memory.
func (s *Stage) Reset() {
	s.ctrl = pidctrl.NewPIDController(s.gains.P, s.gains.I, s.gains.D).Set(0)
	if s.gains.limited() {
		s.ctrl.SetOutputLimits(s.gains.Min, s.gains.Max)
	} else {
		s.ctrl.SetOutputLimits(math.Inf(-1), math.Inf(1))
	}
}
