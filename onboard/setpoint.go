package onboard

import (
	"math"
	"sync"
	"sync/atomic"

	oerrors "github.com/CodedInternet/gofoc/onboard/errors"
)

// Source names the channel a setpoint change arrived on.
type Source string

const (
	SourceSerial Source = "serial"
	SourceRemote Source = "remote"
	SourceShell  Source = "shell"
	SourceHTTP   Source = "http"
	SourceSocket Source = "websocket"
)

type Change struct {
	Source   Source
	Previous float64
	Value    float64
}

// Setpoint owns the motor shaft target in radians. Every writer goes through
// Commit, readers see either the old or the new value.
type Setpoint struct {
	bits atomic.Uint64

	lock        sync.Mutex
	subscribers []func(Change)
}

func (s *Setpoint) Value() float64 {
	return math.Float64frombits(s.bits.Load())
}

// Commit stores value unless it is NaN or infinite.
func (s *Setpoint) Commit(source Source, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return oerrors.NonFiniteError{Value: value}
	}

	prev := math.Float64frombits(s.bits.Swap(math.Float64bits(value)))

	s.lock.Lock()
	subs := s.subscribers
	s.lock.Unlock()

	for _, f := range subs {
		f(Change{Source: source, Previous: prev, Value: value})
	}

	return nil
}

// Subscribe registers f for every successful commit. f runs on the committing
// goroutine and must not block.
func (s *Setpoint) Subscribe(f func(Change)) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.subscribers = append(s.subscribers, f)
}
