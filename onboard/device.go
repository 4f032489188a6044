package onboard

import (
	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/pkg/errors"

	"github.com/CodedInternet/gofoc/onboard/hardware"
)

// Hardware bundles the three devices the core talks to. A Simulator fills all
// three roles.
type Hardware struct {
	Driver  hardware.MotorDriver
	Angle   hardware.AngleSensor
	Current hardware.CurrentSensor
}

// SimulatedHardware returns a Hardware backed by a single plant simulator.
func SimulatedHardware(config ActuatorConfig) (Hardware, *Simulator) {
	sim := NewSimulator(config.Plant, config.Period())
	return Hardware{Driver: sim, Angle: sim, Current: sim}, sim
}

// Actuator owns one fully wired control core.
type Actuator struct {
	Config      ActuatorConfig
	Setpoint    *Setpoint
	Mode        *ModeState
	Inbox       *Inbox
	Interpreter *Interpreter
	Runner      *Runner
}

// NewActuator validates config and wires the stages, cycle driver, command
// interpreter and remote applier around hw. transport may be nil when there
// is no serial link.
func NewActuator(config ActuatorConfig, hw Hardware, transport hardware.ByteTransport) (a *Actuator, err error) {
	if err = config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid actuator config")
	}

	period := config.Period()
	gear := config.Gear()

	a = &Actuator{
		Config:   config,
		Setpoint: new(Setpoint),
		Mode:     new(ModeState),
		Inbox:    new(Inbox),
	}
	a.Interpreter = NewInterpreter(transport, a.Setpoint, a.Mode, gear, config.InterpreterOptions())

	current := NewCurrentLoop(NewStage(config.PID.Current, period), hw.Current, hw.Angle, hw.Driver)
	cascade := NewCascade(
		NewStage(config.PID.Angle, period),
		NewStage(config.PID.Velocity, period),
		current,
		hw.Angle,
		config.CurrentLimit,
	)

	a.Runner = &Runner{
		cycle:    NewCycleDriver(hw.Angle, hw.Current),
		cascade:  cascade,
		current:  current,
		applier:  NewDebouncedApplier(a.Inbox, a.Setpoint, gear, config.DebounceThreshold),
		interp:   a.Interpreter,
		mode:     a.Mode,
		driver:   hw.Driver,
		angle:    hw.Angle,
		amps:     hw.Current,
		gear:     gear,
		period:   period,
		publish:  config.TelemetryEvery,
		lastMode: STANDBY,
		timing:   movingaverage.New(TIMING_WINDOW),
	}

	return a, nil
}
