// Package hid implements the keyboard-wedge scanner channel: keystrokes
// are segmented by timing into candidate codes.
package hid

import (
	"sync"
	"time"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

const (
	DefaultResetAfter    = 500 * time.Millisecond
	DefaultFinalizeAfter = 200 * time.Millisecond
)

const (
	KeyEnter = "Enter"
	KeyTab   = "Tab"
)

// Sink receives finalized buffers.
type Sink func(domain.RawAcquisition)

type Options struct {
	// ResetAfter is the longest gap between digits that still counts as
	// one scan. A slower keystroke starts a new buffer.
	ResetAfter time.Duration
	// FinalizeAfter finalizes the buffer when no further digit arrives,
	// for scanners that send no terminating key. Negative disables it.
	FinalizeAfter time.Duration
}

// Aggregator accumulates digit keystrokes into candidate codes.
type Aggregator struct {
	clock         clock.Clock
	resetAfter    time.Duration
	finalizeAfter time.Duration

	mu    sync.Mutex
	sink  Sink
	buf   []byte
	last  time.Time
	timer *clock.Timer
	// gen invalidates finalize callbacks that lost a race with Stop.
	gen uint64
}

func New(c clock.Clock, opts Options) *Aggregator {
	if opts.ResetAfter == 0 {
		opts.ResetAfter = DefaultResetAfter
	}
	if opts.FinalizeAfter == 0 {
		opts.FinalizeAfter = DefaultFinalizeAfter
	}
	return &Aggregator{
		clock:         c,
		resetAfter:    opts.ResetAfter,
		finalizeAfter: opts.FinalizeAfter,
	}
}

// Attach starts delivering finalized buffers to sink.
func (a *Aggregator) Attach(sink Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = sink
	a.resetLocked()
}

// Detach stops delivery, drops any partial buffer and cancels the
// pending finalize.
func (a *Aggregator) Detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sink = nil
	a.resetLocked()
}

// HandleKey processes one key event and reports whether it was
// consumed (Enter/Tab terminating a scan).
func (a *Aggregator) HandleKey(ev KeyEvent) bool {
	a.mu.Lock()
	if a.sink == nil || ev.Editable {
		a.mu.Unlock()
		return false
	}

	switch {
	case isDigit(ev.Key):
		now := a.clock.Now()
		if len(a.buf) > 0 && now.Sub(a.last) > a.resetAfter {
			a.buf = a.buf[:0]
		}
		a.buf = append(a.buf, ev.Key[0])
		a.last = now
		a.scheduleLocked()
		a.mu.Unlock()
		return false

	case ev.Key == KeyEnter || ev.Key == KeyTab:
		a.stopTimerLocked()
		text, sink := string(a.buf), a.sink
		a.buf = a.buf[:0]
		a.mu.Unlock()
		if text == "" {
			return false
		}
		a.emit(sink, text)
		return true

	default:
		a.mu.Unlock()
		return false
	}
}

// Buffered returns the digits received since the last finalize.
func (a *Aggregator) Buffered() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return string(a.buf)
}

func (a *Aggregator) scheduleLocked() {
	a.stopTimerLocked()
	if a.finalizeAfter < 0 {
		return
	}
	gen := a.gen
	a.timer = a.clock.AfterFunc(a.finalizeAfter, func() { a.finalize(gen) })
}

func (a *Aggregator) finalize(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.sink == nil || len(a.buf) == 0 {
		a.mu.Unlock()
		return
	}
	text, sink := string(a.buf), a.sink
	a.buf = a.buf[:0]
	a.timer = nil
	a.mu.Unlock()
	a.emit(sink, text)
}

func (a *Aggregator) emit(sink Sink, text string) {
	sink(domain.RawAcquisition{
		Text:       text,
		Channel:    domain.ChannelHID,
		AcquiredAt: a.clock.Now(),
	})
}

func (a *Aggregator) stopTimerLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Aggregator) resetLocked() {
	a.stopTimerLocked()
	a.buf = a.buf[:0]
	a.last = time.Time{}
}

func isDigit(key string) bool {
	return len(key) == 1 && key[0] >= '0' && key[0] <= '9'
}
