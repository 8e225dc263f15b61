package engine

import (
	"fmt"
	"time"
)

const (
	minTimeoutBase  = time.Second
	maxTimeoutSlack = 10 * time.Second
	timeoutOverhead = 5 * time.Second

	// DefaultMoveTime is used when a Limit carries neither time nor depth.
	DefaultMoveTime = time.Second
)

// AdaptiveTimeout returns how long a caller waits for a search with the
// given time budget: the budget (at least one second), plus half of it
// capped at ten seconds, plus five seconds of process overhead.
func AdaptiveTimeout(budget time.Duration) time.Duration {
	base := max(budget, minTimeoutBase)
	buffer := min(base/2, maxTimeoutSlack)
	return base + buffer + timeoutOverhead
}

// Limit bounds a single search. A positive Depth takes precedence over Time
// when the search is sent to the engine; Time still drives the timeout.
type Limit struct {
	Time  time.Duration
	Depth int
}

func (l Limit) normalized() Limit {
	if l.Time <= 0 && l.Depth <= 0 {
		l.Time = DefaultMoveTime
	}
	return l
}

// Timeout is the adaptive wait for this limit.
func (l Limit) Timeout() time.Duration {
	return AdaptiveTimeout(l.Time)
}

func (l Limit) String() string {
	if l.Depth > 0 {
		return fmt.Sprintf("depth %d", l.Depth)
	}
	return fmt.Sprintf("movetime %dms", l.Time.Milliseconds())
}
