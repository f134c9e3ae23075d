package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-checkin/internal/verify"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
	mw "github.com/diagnosis/luxsuv-checkin/pkg/middleware"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/service"
)

// LoginAttempts is how many access-code logins one client may try per
// minute.
const LoginAttempts = 5

type Handlers struct {
	checkinService service.CheckinService
	idempotency    mw.IdempotencyStore
	limiter        mw.RateLimitStore
}

func New(checkinService service.CheckinService, idempotency mw.IdempotencyStore, limiter mw.RateLimitStore) *Handlers {
	return &Handlers{checkinService: checkinService, idempotency: idempotency, limiter: limiter}
}

func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(mw.RateLimit(h.limiter, mw.RateLimitConfig{
		Requests: LoginAttempts,
		Window:   time.Minute,
	})).Post("/inspectors/login", h.Login)
	r.Post("/checkin/verify", h.Verify)
	r.With(mw.IdempotencyMiddleware(h.idempotency)).Post("/checkin/attend", h.Attend)
	return r
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req verify.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, verify.LoginResponse{Message: "Invalid JSON format"})
		return
	}

	result, err := h.checkinService.Login(r.Context(), req.AccessCode)
	if err != nil {
		status, message := failure(r, err)
		writeJSON(w, status, verify.LoginResponse{Message: message})
		return
	}
	writeJSON(w, http.StatusOK, verify.LoginResponse{
		Token:     result.Token,
		ExpiresIn: int64(result.ExpiresIn.Seconds()),
	})
}

func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req verify.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, verify.VerifyResponse{Message: "Invalid JSON format"})
		return
	}

	record, err := h.checkinService.Verify(r.Context(), req)
	if err != nil {
		status, message := failure(r, err)
		writeJSON(w, status, verify.VerifyResponse{Message: message})
		return
	}
	writeJSON(w, http.StatusOK, verify.VerifyResponse{Success: true, Data: record})
}

func (h *Handlers) Attend(w http.ResponseWriter, r *http.Request) {
	var req verify.AttendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, verify.VerifyResponse{Message: "Invalid JSON format"})
		return
	}

	record, err := h.checkinService.Attend(r.Context(), req)
	if err != nil {
		status, message := failure(r, err)
		writeJSON(w, status, verify.VerifyResponse{Message: message})
		return
	}
	writeJSON(w, http.StatusOK, verify.VerifyResponse{Success: true, Data: record, Message: "Attendance recorded."})
}

// failure maps a service error onto a status and the message terminals
// show to the operator.
func failure(r *http.Request, err error) (int, string) {
	var nf *domain.NotFoundError
	switch {
	case errors.Is(err, domain.ErrInvalidAccessCode):
		return http.StatusUnauthorized, domain.MessageInvalidAccessCode
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Message
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	}
	logger.ErrorContext(r.Context(), "Check-in request failed", "error", err)
	return http.StatusInternalServerError, "Internal server error"
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
