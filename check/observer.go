package check

import "time"

// Observer is notified about the progress of waits. Implementations must be
// safe for concurrent use since several waits may share one observer.
type Observer interface {
	// ObserveAttempt is called after every attempt. err is nil on success.
	ObserveAttempt(target string, err error)
	// ObserveWait is called once when a wait ends.
	ObserveWait(target string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, error) {}

func (nopObserver) ObserveWait(string, time.Duration, error) {}
