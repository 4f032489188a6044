package onboard

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
)

// PlantConfig describes the simulated motor.
type PlantConfig struct {
	PolePairs      int     `yaml:"pole_pairs"`
	Inertia        float64 `yaml:"inertia"`         // kg m^2
	Damping        float64 `yaml:"damping"`         // N m s/rad
	TorqueConstant float64 `yaml:"torque_constant"` // N m/A
	CurrentLag     float64 `yaml:"current_lag"`     // s
}

func DefaultPlant() PlantConfig {
	return PlantConfig{
		PolePairs:      7,
		Inertia:        1e-4,
		Damping:        1e-4,
		TorqueConstant: 0.05,
		CurrentLag:     0.001,
	}
}

func (p PlantConfig) Validate() (err error) {
	if p.PolePairs <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid pole pairs: %d", p.PolePairs))
	}
	if p.Inertia <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid inertia: %g", p.Inertia))
	}
	if p.Damping < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid damping: %g", p.Damping))
	}
	if p.CurrentLag < 0 {
		err = multierr.Append(err, fmt.Errorf("invalid current lag: %g", p.CurrentLag))
	}
	return
}

// Simulator stands in for the driver, encoder and current sense of a real
// actuator. The drive command is treated as a q-axis current demand that the
// winding follows with a first order lag. Each Actuate advances the plant by
// one control period.
type Simulator struct {
	plant PlantConfig
	dt    float64

	theta, omega, iq float64

	angle, velocity, electrical float64
	phases                      [3]float64
	measured                    float64
}

func NewSimulator(plant PlantConfig, period time.Duration) *Simulator {
	return &Simulator{
		plant: plant,
		dt:    period.Seconds(),
	}
}

func (s *Simulator) Actuate(drive, electricalAngleRad float64) error {
	// a misaligned commutation angle only delivers the projected share
	align := math.Cos(electricalAngleRad - s.trueElectrical())
	alpha := s.dt / (s.plant.CurrentLag + s.dt)
	s.iq += (drive*align - s.iq) * alpha

	torque := s.plant.TorqueConstant * s.iq
	s.omega += (torque - s.plant.Damping*s.omega) / s.plant.Inertia * s.dt
	s.theta += s.omega * s.dt

	return nil
}

func (s *Simulator) RefreshAngle() error {
	s.angle = s.theta
	s.velocity = s.omega
	s.electrical = s.trueElectrical()
	return nil
}

func (s *Simulator) MeasuredAngleRad() float64   { return s.angle }
func (s *Simulator) MeasuredVelocity() float64   { return s.velocity }
func (s *Simulator) ElectricalAngleRad() float64 { return s.electrical }

// RefreshPhaseCurrents synthesises the three phase currents for the present
// q-axis current (d-axis held at zero) and recovers iq from them with the
// Clarke and Park transforms, as a real current sense chain would.
func (s *Simulator) RefreshPhaseCurrents() error {
	sin, cos := math.Sincos(s.electrical)

	alpha := -s.iq * sin
	beta := s.iq * cos
	s.phases[0] = alpha
	s.phases[1] = -alpha/2 + math.Sqrt(3)/2*beta
	s.phases[2] = -alpha/2 - math.Sqrt(3)/2*beta

	a := s.phases[0]
	b := (s.phases[0] + 2*s.phases[1]) / math.Sqrt(3)
	s.measured = -a*sin + b*cos

	return nil
}

func (s *Simulator) MeasuredCurrent() float64 { return s.measured }

func (s *Simulator) PhaseCurrents() [3]float64 { return s.phases }

func (s *Simulator) trueElectrical() float64 {
	e := math.Mod(s.theta*float64(s.plant.PolePairs), 2*math.Pi)
	if e < 0 {
		e += 2 * math.Pi
	}
	return e
}
