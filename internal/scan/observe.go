package scan

import (
	"context"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

// LogTransitions returns an observer that logs every transition at debug
// and rejections, camera faults and failed verifications at warn.
func LogTransitions(ctx context.Context) func(Transition) {
	return func(t Transition) {
		log := logger.WithContext(ctx)
		if t.To.Attempt != "" {
			log = log.With("scan_attempt", t.To.Attempt)
		}
		log.Debug("scan transition",
			"event", EventName(t.Event),
			"from", t.From.Phase,
			"to", t.To.Phase,
			"mode", t.To.Mode,
			"effects", len(t.Effects),
		)

		switch e := t.Event.(type) {
		case Classified:
			if e.Err != nil && t.From.Attempt == e.Attempt {
				log.Warn("code rejected", "channel", t.From.Source, "category", domain.Category(e.Err), "error", e.Err)
			}
		case Activated:
			if e.Err != nil && e.Gen == t.From.Gen {
				log.Warn("camera fault", "mode", t.To.Mode, "category", t.To.FaultCategory, "error", e.Err)
			}
		case Verified:
			if t.From.Phase == PhaseVerifying && t.From.Attempt == e.Attempt && t.To.Outcome != nil && !t.To.Outcome.Success {
				log.Warn("verification failed", "code_kind", t.From.Code.Kind.String(), "message", t.To.Outcome.Message)
			}
		}
		if t.To.AuthRequired && !t.From.AuthRequired {
			log.Warn("operator credential missing, sign-in required")
		}
	}
}
