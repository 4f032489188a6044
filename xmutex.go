package main

import (
	"errors"
	"sync"
)

var ErrInUse = errors.New("resource currently in use")

// xMutex is a lock that refuses instead of waiting.
type xMutex struct {
	lck   sync.Mutex
	inuse bool
}

func (xm *xMutex) Lock() error {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	if xm.inuse {
		return ErrInUse
	}
	xm.inuse = true
	return nil
}

func (xm *xMutex) Unlock() {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	xm.inuse = false
}
