package onboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/rs/zerolog/log"

	"github.com/CodedInternet/gofoc/onboard/hardware"
)

const TIMING_WINDOW = 256

// Snapshot is the telemetry published by the runner.
type Snapshot struct {
	Cycle      uint64  `json:"cycle"`
	Mode       Mode    `json:"mode"`
	Setpoint   float64 `json:"setpoint_rad"`
	OutDeg     float64 `json:"out_deg"`
	Angle      float64 `json:"angle_rad"`
	Velocity   float64 `json:"velocity"`
	Current    float64 `json:"current"`
	CurrentRef float64 `json:"iq_ref"`
	Drive      float64 `json:"drive"`
	AvgCycleUs float64 `json:"avg_cycle_us"`
	Overruns   uint64  `json:"overruns"`
	Faults     uint64  `json:"faults"`
}

// Runner is the harness around the core: one Step per control period.
type Runner struct {
	cycle   *CycleDriver
	cascade *Cascade
	current *CurrentLoop
	applier *DebouncedApplier
	interp  *Interpreter
	mode    *ModeState

	driver  hardware.MotorDriver
	angle   hardware.AngleSensor
	amps    hardware.CurrentSensor
	gear    GearRatio
	period  time.Duration
	publish int

	lastMode    Mode
	lastStandby uint64
	cycles   uint64
	overruns uint64
	faults   uint64
	timing   *movingaverage.MovingAverage
	latest   atomic.Pointer[Snapshot]

	lock        sync.Mutex
	subscribers []func(Snapshot)
}

// Step runs one control cycle: refresh sensors, poll the serial line, apply
// any remote target, then either run the cascade (RUN) or hold a zero drive
// (STANDBY). Any standby request since the last cycle clears the integrators.
// A failed sensor refresh skips actuation for the cycle.
func (r *Runner) Step() (err error) {
	start := time.Now()
	r.cycles++

	tickErr := r.cycle.Tick()

	r.interp.PollLine()
	target := r.applier.ApplyExternalTarget()

	// mode first: a standby that completed before this load has already
	// bumped the counter read next
	mode := r.mode.Mode()
	if standbys := r.mode.Standbys(); standbys != r.lastStandby {
		r.cascade.Reset()
		r.lastStandby = standbys
	}
	if mode != r.lastMode {
		log.Info().Stringer("from", r.lastMode).Stringer("to", mode).Msg("mode change")
		r.lastMode = mode
	}

	switch {
	case tickErr != nil:
		r.faults++
		err = tickErr
	case mode == RUN:
		_, err = r.cascade.ApplyCascade(target)
	default:
		err = r.driver.Actuate(0, r.angle.ElectricalAngleRad())
	}

	elapsed := time.Since(start)
	if elapsed > r.period {
		r.overruns++
	}
	r.timing.Add(float64(elapsed) / float64(time.Microsecond))

	if r.publish > 0 && r.cycles%uint64(r.publish) == 0 {
		r.notify(target, mode)
	}

	return err
}

// Run steps the controller every period until ctx is done, then leaves the
// motor with a zero drive.
func (r *Runner) Run(ctx context.Context) error {
	tick := time.NewTicker(r.period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.driver.Actuate(0, r.angle.ElectricalAngleRad())
		case <-tick.C:
			if err := r.Step(); err != nil && r.faults&(r.faults-1) == 0 {
				// only log the 1st, 2nd, 4th, 8th... fault
				log.Warn().Err(err).Uint64("faults", r.faults).Msg("control cycle fault")
			}
		}
	}
}

func (r *Runner) notify(target float64, mode Mode) {
	snap := &Snapshot{
		Cycle:      r.cycles,
		Mode:       mode,
		Setpoint:   target,
		OutDeg:     r.gear.OutputDeg(target),
		Angle:      r.angle.MeasuredAngleRad(),
		Velocity:   r.angle.MeasuredVelocity(),
		Current:    r.amps.MeasuredCurrent(),
		CurrentRef: r.cascade.LastCurrentRef(),
		Drive:      r.current.LastDrive(),
		AvgCycleUs: r.timing.Avg(),
		Overruns:   r.overruns,
		Faults:     r.faults,
	}
	r.latest.Store(snap)

	r.lock.Lock()
	subs := r.subscribers
	r.lock.Unlock()

	for _, f := range subs {
		f(*snap)
	}
}

// Latest returns the most recent snapshot; ok is false before the first one.
func (r *Runner) Latest() (snap Snapshot, ok bool) {
	p := r.latest.Load()
	if p == nil {
		return snap, false
	}
	return *p, true
}

// Subscribe registers f for every published snapshot. f runs inside the
// control loop and must not block.
func (r *Runner) Subscribe(f func(Snapshot)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.subscribers = append(r.subscribers, f)
}
