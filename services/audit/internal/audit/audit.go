// Package audit tallies the scan and check-in events terminals and the
// verification service publish.
package audit

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-checkin/pkg/events"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

// TerminalStats counts one terminal's scan outcomes.
type TerminalStats struct {
	TerminalID   string `json:"terminalId"`
	Classified   int    `json:"classified"`
	Rejected     int    `json:"rejected"`
	Verified     int    `json:"verified"`
	Failed       int    `json:"failed"`
	CameraFaults int    `json:"cameraFaults"`
	Attended     int    `json:"attended"`
}

type Recorder struct {
	mu        sync.Mutex
	terminals map[string]*TerminalStats
}

func NewRecorder() *Recorder {
	return &Recorder{terminals: make(map[string]*TerminalStats)}
}

// Subjects lists what the recorder subscribes to.
var Subjects = []string{
	events.ScanClassified,
	events.ScanRejected,
	events.ScanVerified,
	events.ScanCameraFault,
	events.CheckinAttended,
}

// Handle records one bus message. Undecodable payloads are logged and
// dropped.
func (r *Recorder) Handle(msg *events.Message) {
	log := logger.Default().With("subject", msg.Subject, "event_id", msg.ID)

	switch msg.Subject {
	case events.ScanClassified:
		var ev events.ScanClassifiedEvent
		if !decode(msg, &ev) {
			return
		}
		r.bump(ev.TerminalID, func(s *TerminalStats) { s.Classified++ })
		log.Info("scan classified", "terminal_id", ev.TerminalID, "channel", ev.Channel, "code_kind", ev.CodeKind)

	case events.ScanRejected:
		var ev events.ScanRejectedEvent
		if !decode(msg, &ev) {
			return
		}
		r.bump(ev.TerminalID, func(s *TerminalStats) { s.Rejected++ })
		log.Info("scan rejected", "terminal_id", ev.TerminalID, "channel", ev.Channel, "category", ev.Category)

	case events.ScanVerified:
		var ev events.ScanVerifiedEvent
		if !decode(msg, &ev) {
			return
		}
		r.bump(ev.TerminalID, func(s *TerminalStats) {
			if ev.Success {
				s.Verified++
			} else {
				s.Failed++
			}
		})
		log.Info("scan verified", "terminal_id", ev.TerminalID, "success", ev.Success, "registration_id", ev.RegistrationID)

	case events.ScanCameraFault:
		var ev events.ScanCameraFaultEvent
		if !decode(msg, &ev) {
			return
		}
		r.bump(ev.TerminalID, func(s *TerminalStats) { s.CameraFaults++ })
		log.Warn("camera fault", "terminal_id", ev.TerminalID, "mode", ev.Mode, "category", ev.Category)

	case events.CheckinAttended:
		var ev events.CheckinAttendedEvent
		if !decode(msg, &ev) {
			return
		}
		r.bump(ev.TerminalID, func(s *TerminalStats) { s.Attended++ })
		log.Info("attendee checked in", "registration_id", ev.RegistrationID, "inspector_id", ev.InspectorID)

	default:
		log.Debug("ignoring event")
	}
}

func decode(msg *events.Message, v interface{}) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		logger.Warn("Dropping undecodable event", "subject", msg.Subject, "error", err)
		return false
	}
	return true
}

func (r *Recorder) bump(terminalID string, fn func(*TerminalStats)) {
	if strings.TrimSpace(terminalID) == "" {
		terminalID = "unknown"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.terminals[terminalID]
	if !ok {
		s = &TerminalStats{TerminalID: terminalID}
		r.terminals[terminalID] = s
	}
	fn(s)
}

// Stats returns per-terminal counts ordered by terminal ID.
func (r *Recorder) Stats() []TerminalStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TerminalStats, 0, len(r.terminals))
	for _, s := range r.terminals {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TerminalID < out[j].TerminalID })
	return out
}

func (r *Recorder) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"terminals": r.Stats()})
	})
	return router
}
