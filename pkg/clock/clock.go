// Package clock abstracts the time operations used by the scanner
// timers so debounce windows and frame intervals can be driven by a
// virtual clock in tests.
//
// Production code holds a Clock field set to Real(). Tests use Fake()
// and move time forward with Advance; AfterFunc callbacks then run
// synchronously on the advancing goroutine, in deadline order.
package clock

import "time"

// Clock is the subset of the time package the terminal depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed and returns a Timer that
	// can cancel or reschedule the call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop cancels the pending call. It reports whether the call was
// still pending.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	return t.stopFunc()
}

// Reset reschedules the call to run d from now. It reports whether the
// call was still pending before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
