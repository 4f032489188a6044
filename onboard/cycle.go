package onboard

import (
	"github.com/pkg/errors"

	"github.com/CodedInternet/gofoc/onboard/hardware"
)

// CycleDriver refreshes sensor state once per control cycle, ahead of any
// control evaluation. It does not run the cascade itself.
type CycleDriver struct {
	angle   hardware.AngleSensor
	current hardware.CurrentSensor
}

func NewCycleDriver(angle hardware.AngleSensor, current hardware.CurrentSensor) *CycleDriver {
	return &CycleDriver{angle: angle, current: current}
}

// Tick latches the encoder first and the phase currents second. The current
// refresh is skipped if the angle could not be read.
func (d *CycleDriver) Tick() error {
	if err := d.angle.RefreshAngle(); err != nil {
		return errors.Wrap(err, "angle refresh")
	}

	if err := d.current.RefreshPhaseCurrents(); err != nil {
		return errors.Wrap(err, "phase current refresh")
	}

	return nil
}
