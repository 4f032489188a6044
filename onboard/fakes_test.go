package onboard

import (
	"errors"
	"strings"
)

type fakeSensors struct {
	angle, velocity, electrical, current float64

	angleRefreshes, currentRefreshes int
	angleErr, currentErr             error
}

func (s *fakeSensors) RefreshAngle() error {
	s.angleRefreshes++
	return s.angleErr
}

func (s *fakeSensors) MeasuredAngleRad() float64   { return s.angle }
func (s *fakeSensors) MeasuredVelocity() float64   { return s.velocity }
func (s *fakeSensors) ElectricalAngleRad() float64 { return s.electrical }

func (s *fakeSensors) RefreshPhaseCurrents() error {
	s.currentRefreshes++
	return s.currentErr
}

func (s *fakeSensors) MeasuredCurrent() float64 { return s.current }

type actuation struct {
	drive, electrical float64
}

type fakeDriver struct {
	calls []actuation
	err   error
}

func (d *fakeDriver) Actuate(drive, electricalAngleRad float64) error {
	d.calls = append(d.calls, actuation{drive, electricalAngleRad})
	return d.err
}

func (d *fakeDriver) last() actuation {
	if len(d.calls) == 0 {
		return actuation{}
	}
	return d.calls[len(d.calls)-1]
}

// fakeTransport hands out queued input and records written lines.
type fakeTransport struct {
	in  []byte
	out []string
}

func (t *fakeTransport) feed(s string) {
	t.in = append(t.in, s...)
}

func (t *fakeTransport) ByteAvailable() bool {
	return len(t.in) > 0
}

func (t *fakeTransport) ReadByte() (byte, error) {
	if len(t.in) == 0 {
		return 0, errors.New("empty")
	}
	b := t.in[0]
	t.in = t.in[1:]
	return b, nil
}

func (t *fakeTransport) WriteLine(text string) error {
	t.out = append(t.out, text)
	return nil
}

func (t *fakeTransport) output() string {
	return strings.Join(t.out, "\n")
}

type fakeMode struct {
	runs, standbys int
}

func (m *fakeMode) EnterRun()     { m.runs++ }
func (m *fakeMode) EnterStandby() { m.standbys++ }
