package reader

import "time"

// Clock schedules delayed callbacks. Sessions never call time.Sleep or
// time.AfterFunc directly so tests can drive timers by hand.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// SystemClock is the wall-clock implementation backed by time.AfterFunc.
type SystemClock struct{}

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// stopTimer stops t if set and returns nil for reassignment.
func stopTimer(t Timer) Timer {
	if t != nil {
		t.Stop()
	}
	return nil
}
