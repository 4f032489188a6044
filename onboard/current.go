package onboard

import (
	"github.com/CodedInternet/gofoc/onboard/hardware"
)

// CurrentLoop is the innermost torque loop. Its PID memory persists across
// calls; only Reset clears it.
type CurrentLoop struct {
	stage  *Stage
	sensor hardware.CurrentSensor
	angle  hardware.AngleSensor
	driver hardware.MotorDriver

	lastDrive float64
}

func NewCurrentLoop(stage *Stage, sensor hardware.CurrentSensor, angle hardware.AngleSensor, driver hardware.MotorDriver) *CurrentLoop {
	return &CurrentLoop{
		stage:  stage,
		sensor: sensor,
		angle:  angle,
		driver: driver,
	}
}

// ApplyTorque drives the motor towards targetCurrent using the latched current
// measurement and electrical angle.
func (l *CurrentLoop) ApplyTorque(targetCurrent float64) error {
	currentErr := targetCurrent - l.sensor.MeasuredCurrent()
	l.lastDrive = l.stage.Update(currentErr)

	return l.driver.Actuate(l.lastDrive, l.angle.ElectricalAngleRad())
}

func (l *CurrentLoop) Reset() {
	l.stage.Reset()
}

// LastDrive is the drive command issued by the most recent ApplyTorque.
func (l *CurrentLoop) LastDrive() float64 {
	return l.lastDrive
}
