package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/luxsuv-checkin/pkg/events"
)

func message(t *testing.T, subject string, payload interface{}) *events.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &events.Message{Subject: subject, Data: data, Timestamp: time.Now(), ID: "ev-1"}
}

func TestRecorderCountsPerTerminal(t *testing.T) {
	r := NewRecorder()

	r.Handle(message(t, events.ScanClassified, events.ScanClassifiedEvent{TerminalID: "b", CodeKind: "QR_CODE"}))
	r.Handle(message(t, events.ScanVerified, events.ScanVerifiedEvent{TerminalID: "b", Success: true}))
	r.Handle(message(t, events.ScanVerified, events.ScanVerifiedEvent{TerminalID: "b", Success: false}))
	r.Handle(message(t, events.ScanRejected, events.ScanRejectedEvent{TerminalID: "a"}))
	r.Handle(message(t, events.ScanCameraFault, events.ScanCameraFaultEvent{TerminalID: "a"}))
	r.Handle(message(t, events.CheckinAttended, events.CheckinAttendedEvent{RegistrationID: "reg-1"}))
	r.Handle(&events.Message{Subject: events.ScanVerified, Data: []byte("not json")})

	stats := r.Stats()
	if len(stats) != 3 {
		t.Fatalf("expected 3 terminals, got %+v", stats)
	}
	a, b, unknown := stats[0], stats[1], stats[2]
	if a.TerminalID != "a" || a.Rejected != 1 || a.CameraFaults != 1 {
		t.Fatalf("unexpected stats for a: %+v", a)
	}
	if b.Classified != 1 || b.Verified != 1 || b.Failed != 1 {
		t.Fatalf("unexpected stats for b: %+v", b)
	}
	if unknown.TerminalID != "unknown" || unknown.Attended != 1 {
		t.Fatalf("attendance without a terminal should be bucketed: %+v", unknown)
	}
}

func TestStatsRoute(t *testing.T) {
	r := NewRecorder()
	r.Handle(message(t, events.ScanClassified, events.ScanClassifiedEvent{TerminalID: "kiosk-1"}))

	rec := httptest.NewRecorder()
	r.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Terminals []TerminalStats `json:"terminals"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Terminals) != 1 || body.Terminals[0].Classified != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}
