package onboard

import "github.com/go-gl/mathgl/mgl64"

// GearRatio relates the output shaft to the motor shaft: one output degree is
// GearRatio motor degrees.
type GearRatio float64

// MotorRad converts an output shaft angle in degrees to the motor shaft target
// in radians.
func (g GearRatio) MotorRad(outDeg float64) float64 {
	return mgl64.DegToRad(outDeg * float64(g))
}

// OutputDeg is the inverse of MotorRad.
func (g GearRatio) OutputDeg(motorRad float64) float64 {
	return mgl64.RadToDeg(motorRad) / float64(g)
}
