package editor

import "time"

// Timer is a cancellable debounce timer handle.
type Timer interface {
	// Stop cancels the timer. Reports false if it already fired.
	Stop() bool
}

// Clock schedules debounce timers. The scheduler owns its timer handles
// through this interface so tests can drive it with a virtual clock instead
// of sleeping.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

type systemTimer struct {
	t *time.Timer
}

func (t systemTimer) Stop() bool {
	return t.t.Stop()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return systemTimer{t: time.AfterFunc(d, f)}
}

// SystemClock returns the real wall clock.
func SystemClock() Clock {
	return systemClock{}
}
