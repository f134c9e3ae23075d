// Package publish forwards scan session transitions to the event bus.
package publish

import (
	"context"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/internal/scan"
	"github.com/diagnosis/luxsuv-checkin/internal/verify"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
	"github.com/diagnosis/luxsuv-checkin/pkg/events"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

// Bridge turns applied transitions into scan.* events. Transitions the
// reducer ignored (stale attempts, input while busy) publish nothing.
type Bridge struct {
	pub        events.Publisher
	terminalID string
	clock      clock.Clock
	ctx        context.Context
}

func NewBridge(ctx context.Context, pub events.Publisher, terminalID string, c clock.Clock) *Bridge {
	return &Bridge{pub: pub, terminalID: terminalID, clock: c, ctx: ctx}
}

// Observe is registered with scan.Coordinator.Observe.
func (b *Bridge) Observe(t scan.Transition) {
	subject, payload := b.event(t)
	if payload == nil {
		return
	}
	if err := b.pub.Publish(b.ctx, subject, payload); err != nil {
		logger.WarnContext(b.ctx, "Failed to publish scan event", "subject", subject, "error", err)
	}
}

func (b *Bridge) event(t scan.Transition) (string, interface{}) {
	now := b.clock.Now().UTC()

	switch e := t.Event.(type) {
	case scan.Classified:
		if t.From.Phase != scan.PhaseClassifying || t.From.Attempt != e.Attempt {
			return "", nil
		}
		if e.Err != nil {
			return events.ScanRejected, events.ScanRejectedEvent{
				TerminalID: b.terminalID,
				Attempt:    e.Attempt,
				Channel:    string(t.From.Source),
				Category:   domain.Category(e.Err),
				At:         now,
			}
		}
		tag, _ := verify.KindTag(e.Code.Kind)
		return events.ScanClassified, events.ScanClassifiedEvent{
			TerminalID: b.terminalID,
			Attempt:    e.Attempt,
			Channel:    string(t.From.Source),
			CodeKind:   tag,
			At:         now,
		}

	case scan.Verified:
		if t.From.Phase != scan.PhaseVerifying || t.From.Attempt != e.Attempt || t.To.Outcome == nil {
			return "", nil
		}
		tag, _ := verify.KindTag(t.From.Code.Kind)
		ev := events.ScanVerifiedEvent{
			TerminalID: b.terminalID,
			Attempt:    e.Attempt,
			CodeKind:   tag,
			Success:    t.To.Outcome.Success,
			Message:    t.To.Outcome.Message,
			At:         now,
		}
		if p := t.To.Outcome.Payload; p != nil {
			ev.RegistrationID = p.RegistrationID
		}
		return events.ScanVerified, ev

	case scan.Activated:
		if e.Err == nil || e.Gen != t.From.Gen {
			return "", nil
		}
		return events.ScanCameraFault, events.ScanCameraFaultEvent{
			TerminalID: b.terminalID,
			Mode:       string(t.To.Mode),
			Category:   t.To.FaultCategory,
			Hint:       t.To.Fault,
			At:         now,
		}
	}
	return "", nil
}
