package hardware

// MotorDriver actuates the motor with a drive command aligned to the given
// electrical angle.
type MotorDriver interface {
	Actuate(drive, electricalAngleRad float64) error
}

// AngleSensor exposes the latched magnetic encoder reading. Values only change
// on RefreshAngle.
type AngleSensor interface {
	RefreshAngle() error
	MeasuredAngleRad() float64
	MeasuredVelocity() float64
	ElectricalAngleRad() float64
}

// CurrentSensor exposes the torque producing (q-axis) current derived from the
// latched phase currents.
type CurrentSensor interface {
	RefreshPhaseCurrents() error
	MeasuredCurrent() float64
}

type LineWriter interface {
	WriteLine(text string) error
}

// ByteTransport is a non-blocking byte source with a line oriented reply path.
type ByteTransport interface {
	LineWriter
	ByteAvailable() bool
	ReadByte() (byte, error)
}
