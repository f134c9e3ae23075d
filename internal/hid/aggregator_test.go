package hid

import (
	"testing"
	"time"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

var epoch = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

type recorder struct {
	got []domain.RawAcquisition
}

func (r *recorder) sink(raw domain.RawAcquisition) { r.got = append(r.got, raw) }

func (r *recorder) texts() []string {
	out := make([]string, len(r.got))
	for i, raw := range r.got {
		out[i] = raw.Text
	}
	return out
}

func typeDigits(a *Aggregator, c *clock.FakeClock, digits string, gap time.Duration) {
	for i, d := range digits {
		if i > 0 {
			c.Advance(gap)
		}
		a.HandleKey(KeyEvent{Key: string(d)})
	}
}

func newTestAggregator(opts Options) (*Aggregator, *clock.FakeClock, *recorder) {
	c := clock.Fake(epoch)
	a := New(c, opts)
	rec := &recorder{}
	a.Attach(rec.sink)
	return a, c, rec
}

func TestEnterFinalizesOnce(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})

	typeDigits(a, c, "1234567", 10*time.Millisecond)
	if !a.HandleKey(KeyEvent{Key: KeyEnter}) {
		t.Fatal("Enter with a buffered scan should be consumed")
	}
	c.Advance(time.Second)

	if len(rec.got) != 1 || rec.got[0].Text != "1234567" {
		t.Fatalf("expected one finalize of 1234567, got %v", rec.texts())
	}
	if rec.got[0].Channel != domain.ChannelHID {
		t.Fatalf("channel = %q", rec.got[0].Channel)
	}
	if a.Buffered() != "" {
		t.Fatalf("buffer not cleared: %q", a.Buffered())
	}
}

func TestFinalizeTimerWithoutTerminator(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})

	typeDigits(a, c, "654321", 15*time.Millisecond)
	c.Advance(199 * time.Millisecond)
	if len(rec.got) != 0 {
		t.Fatalf("finalized early: %v", rec.texts())
	}
	c.Advance(time.Millisecond)
	if len(rec.got) != 1 || rec.got[0].Text != "654321" {
		t.Fatalf("expected timer finalize, got %v", rec.texts())
	}
}

func TestEachDigitRestartsFinalizeTimer(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})

	typeDigits(a, c, "1234567", 150*time.Millisecond)
	if len(rec.got) != 0 {
		t.Fatalf("finalized mid-scan: %v", rec.texts())
	}
	c.Advance(200 * time.Millisecond)
	if got := rec.texts(); len(got) != 1 || got[0] != "1234567" {
		t.Fatalf("got %v", got)
	}
}

func TestSlowGapDiscardsStalePrefix(t *testing.T) {
	a, c, rec := newTestAggregator(Options{FinalizeAfter: -1})

	typeDigits(a, c, "123", 10*time.Millisecond)
	c.Advance(600 * time.Millisecond)
	typeDigits(a, c, "456789", 10*time.Millisecond)
	a.HandleKey(KeyEvent{Key: KeyEnter})

	if got := rec.texts(); len(got) != 1 || got[0] != "456789" {
		t.Fatalf("expected only 456789, got %v", got)
	}
}

func TestSlowGapWithFinalizeTimer(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})

	typeDigits(a, c, "123", 10*time.Millisecond)
	c.Advance(600 * time.Millisecond)
	typeDigits(a, c, "456789", 10*time.Millisecond)
	a.HandleKey(KeyEvent{Key: KeyEnter})

	got := rec.texts()
	if len(got) != 2 || got[0] != "123" || got[1] != "456789" {
		t.Fatalf("expected the stale prefix to finalize on its own, got %v", got)
	}
}

func TestIgnoredKeys(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})

	a.HandleKey(KeyEvent{Key: "1", Editable: true})
	a.HandleKey(KeyEvent{Key: "Shift"})
	a.HandleKey(KeyEvent{Key: "a"})
	if a.HandleKey(KeyEvent{Key: KeyEnter}) {
		t.Fatal("Enter on an empty buffer should not be consumed")
	}
	c.Advance(time.Second)
	if len(rec.got) != 0 {
		t.Fatalf("unexpected finalize: %v", rec.texts())
	}
}

func TestTabTerminates(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})
	typeDigits(a, c, "999999", 5*time.Millisecond)
	if !a.HandleKey(KeyEvent{Key: KeyTab}) {
		t.Fatal("Tab should be consumed")
	}
	if got := rec.texts(); len(got) != 1 || got[0] != "999999" {
		t.Fatalf("got %v", got)
	}
}

func TestDetachDropsBufferAndTimer(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})

	typeDigits(a, c, "1234", 5*time.Millisecond)
	a.Detach()
	c.Advance(time.Second)
	a.HandleKey(KeyEvent{Key: "5"})
	a.HandleKey(KeyEvent{Key: KeyEnter})

	if len(rec.got) != 0 {
		t.Fatalf("detached aggregator delivered %v", rec.texts())
	}
	if c.Pending() != 0 {
		t.Fatalf("finalize timer left pending")
	}
}

func TestReadyImmediatelyAfterFinalize(t *testing.T) {
	a, c, rec := newTestAggregator(Options{})

	typeDigits(a, c, "12", 5*time.Millisecond)
	a.HandleKey(KeyEvent{Key: KeyEnter})
	typeDigits(a, c, "7654321", 5*time.Millisecond)
	a.HandleKey(KeyEvent{Key: KeyEnter})

	got := rec.texts()
	if len(got) != 2 || got[1] != "7654321" {
		t.Fatalf("got %v", got)
	}
}
