package cleanup

import "time"

// Clock abstracts wall-clock reads and deferred execution so the retry
// state machine is testable without real delays.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// NewRealClock returns the production clock backed by the time package.
func NewRealClock() Clock { return realClock{} }
