package clock

import "time"

// Clock is injected wherever time-window logic runs so promotion eligibility
// can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

// Fixed returns a clock pinned to t. Used in tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
