// Package terminal serves the kiosk webview: it renders the scan
// session, takes operator actions and relays keyboard, camera and
// decoder reports into the acquisition channels.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/internal/hid"
	"github.com/diagnosis/luxsuv-checkin/internal/http/response"
	"github.com/diagnosis/luxsuv-checkin/internal/operator"
	"github.com/diagnosis/luxsuv-checkin/internal/optical"
	"github.com/diagnosis/luxsuv-checkin/internal/scan"
	"github.com/diagnosis/luxsuv-checkin/internal/verify"
	"github.com/diagnosis/luxsuv-checkin/pkg/auth"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

// Authenticator exchanges an inspector access code for a session token.
type Authenticator interface {
	Login(ctx context.Context, accessCode string) (string, error)
}

type Handler struct {
	Scan      *scan.Coordinator
	Feed      *hid.Feed
	Camera    *camera.Relay
	Decoder   *optical.RelayDecoder
	Operators operator.Store
	Auth      Authenticator
	JWTSecret string
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/scan", func(r chi.Router) {
		r.Get("/", h.getScan)
		r.Post("/mode", h.selectMode)
		r.Post("/manual", h.submitManual)
		r.Post("/retry", h.action((*scan.Coordinator).Retry))
		r.Post("/another", h.action((*scan.Coordinator).ScanAnother))
		r.Post("/suspend", h.action((*scan.Coordinator).Suspend))
		r.Post("/attend", h.action((*scan.Coordinator).MarkAttended))
	})

	r.Post("/hid/keys", h.keys)
	r.Post("/camera/status", h.cameraStatus)
	r.Post("/camera/decoded", h.decoded)

	r.Route("/operator/session", func(r chi.Router) {
		r.Get("/", h.currentOperator)
		r.Post("/", h.signIn)
		r.Delete("/", h.signOut)
	})
	return r
}

// scanView is the session as the kiosk renders it.
type scanView struct {
	scan.Session
	CodeKind string `json:"codeKind,omitempty"`
}

func (h *Handler) view() scanView {
	s := h.Scan.Snapshot()
	v := scanView{Session: s}
	if !s.Code.IsZero() {
		v.CodeKind, _ = verify.KindTag(s.Code.Kind)
	}
	return v
}

func (h *Handler) getScan(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) selectMode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if err := h.Scan.SelectMode(scan.Mode(in.Mode)); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error(), response.CodeUnknownMode)
		return
	}
	logger.InfoContext(r.Context(), "Scan mode selected", "mode", in.Mode)
	response.WriteJSON(w, http.StatusOK, h.view())
}

func (h *Handler) submitManual(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	h.Scan.SubmitManualCode(in.Code)
	response.WriteJSON(w, http.StatusAccepted, h.view())
}

func (h *Handler) action(fn func(*scan.Coordinator)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(h.Scan)
		response.WriteJSON(w, http.StatusOK, h.view())
	}
}

func (h *Handler) keys(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Events []hid.KeyEvent `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	consumed := make([]bool, len(in.Events))
	for i, ev := range in.Events {
		consumed[i] = h.Feed.Emit(ev)
	}
	response.WriteJSON(w, http.StatusOK, map[string]interface{}{"consumed": consumed})
}

func (h *Handler) cameraStatus(w http.ResponseWriter, r *http.Request) {
	var st camera.RelayStatus
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	switch st.State {
	case camera.RelayGranted, camera.RelayDenied, camera.RelayNoDevice, camera.RelayOverconstrained, camera.RelayError:
	default:
		response.BadRequest(w, "Unknown camera state")
		return
	}
	h.Camera.Report(st)
	response.WriteJSON(w, http.StatusOK, h.Camera.Status())
}

func (h *Handler) decoded(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Text == "" {
		response.BadRequest(w, "Decoded text is required")
		return
	}
	h.Decoder.Deliver(in.Text)
	response.WriteJSON(w, http.StatusAccepted, h.view())
}

type operatorView struct {
	InspectorID string    `json:"inspectorId"`
	Name        string    `json:"name,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (h *Handler) currentOperator(w http.ResponseWriter, r *http.Request) {
	s, err := h.Operators.Current(r.Context())
	if err != nil {
		response.NotFound(w, "No operator signed in")
		return
	}
	response.WriteJSON(w, http.StatusOK, operatorView{InspectorID: s.InspectorID, Name: s.Name, ExpiresAt: s.ExpiresAt})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AccessCode string `json:"accessCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	code := strings.TrimSpace(in.AccessCode)
	if code == "" {
		response.BadRequest(w, "Access code is required")
		return
	}

	token, err := h.Auth.Login(r.Context(), code)
	if err != nil {
		var derr *verify.DispatchError
		if errors.As(err, &derr) && derr.Status == http.StatusUnauthorized {
			response.Unauthorized(w, verify.Message(err))
			return
		}
		logger.ErrorContext(r.Context(), "Inspector login failed", "error", err)
		response.BadGateway(w, verify.Message(err))
		return
	}
	claims, err := auth.ParseOperatorToken(token, h.JWTSecret)
	if err != nil {
		logger.ErrorContext(r.Context(), "Verification service issued an unusable token", "error", err)
		response.WriteError(w, http.StatusBadGateway, "Invalid session token", response.CodeInvalidToken)
		return
	}

	session := operator.Session{
		InspectorID: claims.InspectorID(),
		Name:        claims.Name,
		Credential:  domain.OperatorCredential(code),
		ExpiresAt:   claims.ExpiresAt.Time,
	}
	if err := h.Operators.SignIn(r.Context(), session); err != nil {
		logger.ErrorContext(r.Context(), "Failed to store operator session", "error", err)
		response.InternalError(w, "Failed to start operator session")
		return
	}
	logger.InfoContext(r.Context(), "Operator signed in", "inspector_id", session.InspectorID)
	response.WriteJSON(w, http.StatusOK, operatorView{InspectorID: session.InspectorID, Name: session.Name, ExpiresAt: session.ExpiresAt})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	h.Scan.Suspend()
	if err := h.Operators.SignOut(r.Context()); err != nil {
		logger.ErrorContext(r.Context(), "Failed to clear operator session", "error", err)
		response.InternalError(w, "Failed to end operator session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
