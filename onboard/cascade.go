package onboard

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/CodedInternet/gofoc/onboard/hardware"
)

// Cascade composes position -> velocity -> current control.
//
// The position error is handed to the angle stage in degrees so the angle
// gains keep their degree based tuning. The velocity and current stages work
// in the sensor's native units (rad/s and amps).
type Cascade struct {
	angle    *Stage
	velocity *Stage
	current  *CurrentLoop
	sensor   hardware.AngleSensor
	iMax     float64

	lastRef float64
}

func NewCascade(angle, velocity *Stage, current *CurrentLoop, sensor hardware.AngleSensor, currentLimit float64) *Cascade {
	return &Cascade{
		angle:    angle,
		velocity: velocity,
		current:  current,
		sensor:   sensor,
		iMax:     currentLimit,
	}
}

// ApplyCascade runs all three stages against targetRad and returns the clamped
// q-axis current reference that was handed to the current loop. Every call is
// a full evaluation.
func (c *Cascade) ApplyCascade(targetRad float64) (float64, error) {
	positionErrDeg := mgl64.RadToDeg(targetRad - c.sensor.MeasuredAngleRad())
	velocityRef := c.angle.Update(positionErrDeg)

	velocityErr := velocityRef - c.sensor.MeasuredVelocity()
	iqRef := c.velocity.Update(velocityErr)

	iqRef = mgl64.Clamp(iqRef, -c.iMax, c.iMax)
	c.lastRef = iqRef

	return iqRef, c.current.ApplyTorque(iqRef)
}

// Reset clears the integrators of every stage.
func (c *Cascade) Reset() {
	c.angle.Reset()
	c.velocity.Reset()
	c.current.Reset()
	c.lastRef = 0
}

func (c *Cascade) LastCurrentRef() float64 {
	return c.lastRef
}
