package onboard

import (
	"sync/atomic"
)

type Mode int32

const (
	STANDBY Mode = iota
	RUN
)

func (m Mode) String() string {
	switch m {
	case RUN:
		return "RUN"
	case STANDBY:
		return "STANDBY"
	}
	return "UNKNOWN"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ModeSwitch is the part of the mode state command sources are allowed to touch.
type ModeSwitch interface {
	EnterRun()
	EnterStandby()
}

// ModeState gates whether the cascade may drive the motor. It starts in STANDBY.
// Every EnterStandby also bumps a generation counter, so a STANDBY that is
// undone before the control loop samples the mode is still observable.
type ModeState struct {
	mode     atomic.Int32
	standbys atomic.Uint64
}

func (s *ModeState) EnterRun() {
	s.mode.Store(int32(RUN))
}

func (s *ModeState) EnterStandby() {
	s.mode.Store(int32(STANDBY))
	s.standbys.Add(1)
}

// Standbys counts calls to EnterStandby.
func (s *ModeState) Standbys() uint64 {
	return s.standbys.Load()
}

func (s *ModeState) Mode() Mode {
	return Mode(s.mode.Load())
}
