package onboard

import (
	"math"

	"github.com/rs/zerolog/log"
)

// DebouncedApplier commits remote targets only when they move the motor target
// by more than the threshold, so a transport that keeps re-sending the same
// value does not re-excite the loops.
type DebouncedApplier struct {
	inbox     *Inbox
	setpoint  *Setpoint
	gear      GearRatio
	threshold float64

	lastCommitted float64
}

func NewDebouncedApplier(inbox *Inbox, setpoint *Setpoint, gear GearRatio, threshold float64) *DebouncedApplier {
	return &DebouncedApplier{
		inbox:     inbox,
		setpoint:  setpoint,
		gear:      gear,
		threshold: threshold,
	}
}

// ApplyExternalTarget consumes a pending remote target, if any, and returns the
// setpoint in effect afterwards. A change exactly equal to the threshold is
// discarded.
func (a *DebouncedApplier) ApplyExternalTarget() float64 {
	outDeg, ok := a.inbox.Take()
	if !ok {
		return a.setpoint.Value()
	}

	motorRad := a.gear.MotorRad(outDeg)
	if !(math.Abs(motorRad-a.lastCommitted) > a.threshold) {
		log.Debug().Float64("out_deg", outDeg).Msg("remote target unchanged")
		return a.setpoint.Value()
	}

	if err := a.setpoint.Commit(SourceRemote, motorRad); err != nil {
		log.Warn().Err(err).Float64("out_deg", outDeg).Msg("remote target rejected")
		return a.setpoint.Value()
	}
	a.lastCommitted = motorRad

	log.Debug().
		Float64("out_deg", outDeg).
		Float64("motor_rad", motorRad).
		Float64("ratio", float64(a.gear)).
		Msg("remote target committed")

	return a.setpoint.Value()
}
