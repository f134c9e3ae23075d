package terminal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/internal/hid"
	"github.com/diagnosis/luxsuv-checkin/internal/http/handlers/terminal"
	"github.com/diagnosis/luxsuv-checkin/internal/operator"
	"github.com/diagnosis/luxsuv-checkin/internal/optical"
	"github.com/diagnosis/luxsuv-checkin/internal/scan"
	"github.com/diagnosis/luxsuv-checkin/internal/verify"
	"github.com/diagnosis/luxsuv-checkin/pkg/auth"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

const testSecret = "terminal-test-secret"

// ---------- Mocks ----------

type mockVerifier struct {
	mu       sync.Mutex
	outcome  domain.VerificationOutcome
	err      error
	codes    []string
	attended []string
}

func (m *mockVerifier) Verify(_ context.Context, code domain.ClassifiedCode, cred domain.OperatorCredential) (domain.VerificationOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred.IsZero() {
		return domain.VerificationOutcome{}, domain.ErrNoOperatorCredential
	}
	m.codes = append(m.codes, code.Code)
	return m.outcome, m.err
}

func (m *mockVerifier) MarkAttended(_ context.Context, id string, _ domain.OperatorCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attended = append(m.attended, id)
	return nil
}

type mockAuth struct {
	validCode string
	token     string
}

func (m *mockAuth) Login(_ context.Context, accessCode string) (string, error) {
	if accessCode != m.validCode {
		return "", &verify.DispatchError{Status: http.StatusUnauthorized, Message: "Invalid inspector access code."}
	}
	return m.token, nil
}

// ---------- Test Setup ----------

type testRig struct {
	server    *httptest.Server
	verifier  *mockVerifier
	operators *operator.MemoryStore
	relay     *camera.Relay
	coord     *scan.Coordinator
}

func setupTestServer(t *testing.T) *testRig {
	t.Helper()

	c := clock.Fake(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	feed := hid.NewFeed()
	agg := hid.New(c, hid.Options{})
	verifier := &mockVerifier{}
	operators := operator.NewMemoryStore(clock.Real())

	n := 0
	coord := scan.New(scan.Options{
		Channels:    map[scan.Mode]scan.Channel{scan.ModeHID: scan.NewHID(feed, agg)},
		Verifier:    verifier,
		Credentials: operators,
		Clock:       c,
		Go:          func(f func()) { f() },
		NewAttemptID: func() string {
			n++
			return fmt.Sprintf("attempt-%d", n)
		},
	})
	t.Cleanup(coord.Close)

	token, err := auth.NewOperatorToken("insp-7", "Dana", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewOperatorToken: %v", err)
	}
	relay := camera.NewRelay()
	h := &terminal.Handler{
		Scan:      coord,
		Feed:      feed,
		Camera:    relay,
		Decoder:   optical.NewRelayDecoder(),
		Operators: operators,
		Auth:      &mockAuth{validCode: "482913", token: token},
		JWTSecret: testSecret,
	}

	r := chi.NewRouter()
	r.Mount("/v1", h.Routes())
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &testRig{server: server, verifier: verifier, operators: operators, relay: relay, coord: coord}
}

type scanView struct {
	Mode    string `json:"mode"`
	Phase   string `json:"phase"`
	Attempt string `json:"attempt"`
	Code    struct {
		Code string `json:"code"`
	} `json:"code"`
	CodeKind string `json:"codeKind"`
	Source   string `json:"source"`
	Outcome  *struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	} `json:"outcome"`
	Notice        string `json:"notice"`
	AuthRequired  bool   `json:"authRequired"`
	ChannelActive bool   `json:"channelActive"`
}

// ---------- Tests ----------

func TestOperatorSession_SignInAndOut(t *testing.T) {
	rig := setupTestServer(t)

	resp := postJSON(t, rig.server.URL+"/v1/operator/session", map[string]string{"accessCode": "482913"}, http.StatusOK)
	var signedIn map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&signedIn)
	resp.Body.Close()

	if signedIn["inspectorId"] != "insp-7" || signedIn["name"] != "Dana" {
		t.Fatalf("unexpected session: %v", signedIn)
	}
	if _, ok := signedIn["credential"]; ok {
		t.Fatal("access code must not be echoed back")
	}

	cred, err := rig.operators.Credential(context.Background())
	if err != nil || cred != "482913" {
		t.Fatalf("stored credential = %q, %v", cred, err)
	}

	get(t, rig.server.URL+"/v1/operator/session", http.StatusOK).Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, rig.server.URL+"/v1/operator/session", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp.StatusCode)
	}

	get(t, rig.server.URL+"/v1/operator/session", http.StatusNotFound).Body.Close()
}

func TestOperatorSession_InvalidCode_Unauthorized(t *testing.T) {
	rig := setupTestServer(t)

	resp := postJSON(t, rig.server.URL+"/v1/operator/session", map[string]string{"accessCode": "000000"}, http.StatusUnauthorized)
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if body["error"] != "Invalid inspector access code." {
		t.Fatalf("unexpected error body: %v", body)
	}

	postJSON(t, rig.server.URL+"/v1/operator/session", map[string]string{"accessCode": "  "}, http.StatusBadRequest).Body.Close()
}

func TestScan_HIDKeysVerifyEndToEnd(t *testing.T) {
	rig := setupTestServer(t)
	rig.verifier.outcome = domain.VerificationOutcome{
		Success: true,
		Payload: &domain.AttendeeRecord{RegistrationID: "reg-1", Name: "Ada"},
		Message: "Welcome",
	}
	postJSON(t, rig.server.URL+"/v1/operator/session", map[string]string{"accessCode": "482913"}, http.StatusOK).Body.Close()

	resp := postJSON(t, rig.server.URL+"/v1/scan/mode", map[string]string{"mode": "hid"}, http.StatusOK)
	view := decodeView(t, resp)
	if view.Phase != "acquiring" || !view.ChannelActive {
		t.Fatalf("expected acquiring with an active channel, got %+v", view)
	}

	var events []hid.KeyEvent
	for _, k := range "1234567" {
		events = append(events, hid.KeyEvent{Key: string(k)})
	}
	events = append(events, hid.KeyEvent{Key: hid.KeyEnter})

	keysResp := postJSON(t, rig.server.URL+"/v1/hid/keys", map[string]interface{}{"events": events}, http.StatusOK)
	var keys struct {
		Consumed []bool `json:"consumed"`
	}
	json.NewDecoder(keysResp.Body).Decode(&keys)
	keysResp.Body.Close()
	if len(keys.Consumed) != 8 || !keys.Consumed[7] || keys.Consumed[0] {
		t.Fatalf("only the terminating Enter should be consumed: %v", keys.Consumed)
	}

	view = decodeView(t, get(t, rig.server.URL+"/v1/scan", http.StatusOK))
	if view.Phase != "result" || view.Outcome == nil || !view.Outcome.Success {
		t.Fatalf("expected successful result, got %+v", view)
	}
	if view.Code.Code != "1234567" || view.CodeKind != verify.TagSevenDigit || view.Source != string(domain.ChannelHID) {
		t.Fatalf("unexpected code in view: %+v", view)
	}

	postJSON(t, rig.server.URL+"/v1/scan/attend", nil, http.StatusOK).Body.Close()
	if len(rig.verifier.attended) != 1 || rig.verifier.attended[0] != "reg-1" {
		t.Fatalf("expected attendance for reg-1, got %v", rig.verifier.attended)
	}

	view = decodeView(t, postJSON(t, rig.server.URL+"/v1/scan/another", nil, http.StatusOK))
	if view.Phase != "acquiring" || view.Outcome != nil {
		t.Fatalf("scan another should reacquire, got %+v", view)
	}
}

func TestScan_ManualCodeWithoutOperator_RequiresAuth(t *testing.T) {
	rig := setupTestServer(t)

	resp := postJSON(t, rig.server.URL+"/v1/scan/manual", map[string]string{"code": " 123456 "}, http.StatusAccepted)
	view := decodeView(t, resp)
	if !view.AuthRequired {
		t.Fatalf("expected auth required, got %+v", view)
	}
	if len(rig.verifier.codes) != 0 {
		t.Fatalf("verifier should not be reached without a credential, got %v", rig.verifier.codes)
	}
}

func TestScan_ManualCodeInvalidFormat_Notice(t *testing.T) {
	rig := setupTestServer(t)
	postJSON(t, rig.server.URL+"/v1/operator/session", map[string]string{"accessCode": "482913"}, http.StatusOK).Body.Close()

	view := decodeView(t, postJSON(t, rig.server.URL+"/v1/scan/manual", map[string]string{"code": "12345"}, http.StatusAccepted))
	if view.Notice != scan.NoticeInvalidFormat {
		t.Fatalf("expected format notice, got %+v", view)
	}
	if view.Phase == "result" {
		t.Fatal("a format error must not end the session")
	}
}

func TestScan_UnknownMode_BadRequest(t *testing.T) {
	rig := setupTestServer(t)

	tests := []struct {
		name string
		mode string
	}{
		{"bogus", "infrared"},
		{"no channel wired", "optical-qr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			postJSON(t, rig.server.URL+"/v1/scan/mode", map[string]string{"mode": tt.mode}, http.StatusBadRequest).Body.Close()
		})
	}
}

func TestCamera_StatusAndDecoded(t *testing.T) {
	rig := setupTestServer(t)

	postJSON(t, rig.server.URL+"/v1/camera/status", map[string]interface{}{"state": "granted", "width": 640, "height": 480}, http.StatusOK).Body.Close()
	if st := rig.relay.Status(); st.State != camera.RelayGranted || st.Width != 640 {
		t.Fatalf("relay status not recorded: %+v", st)
	}

	postJSON(t, rig.server.URL+"/v1/camera/status", map[string]string{"state": "sideways"}, http.StatusBadRequest).Body.Close()
	postJSON(t, rig.server.URL+"/v1/camera/decoded", map[string]string{"text": ""}, http.StatusBadRequest).Body.Close()
	postJSON(t, rig.server.URL+"/v1/camera/decoded", map[string]string{"text": "0123456789012"}, http.StatusAccepted).Body.Close()
}

// ---------- Helpers ----------

func decodeView(t *testing.T, resp *http.Response) scanView {
	t.Helper()
	defer resp.Body.Close()
	var v scanView
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode scan view: %v", err)
	}
	return v
}

func postJSON(t *testing.T, url string, data interface{}, expectedStatus int) *http.Response {
	t.Helper()

	body := jsonBytes(data)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	if resp.StatusCode != expectedStatus {
		t.Fatalf("POST %s: expected status %d, got %d", url, expectedStatus, resp.StatusCode)
	}
	return resp
}

func get(t *testing.T, url string, expectedStatus int) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	if resp.StatusCode != expectedStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, expectedStatus, resp.StatusCode)
	}
	return resp
}

func jsonBytes(data interface{}) []byte {
	if data == nil {
		return []byte("{}")
	}
	b, _ := json.Marshal(data)
	return b
}
