package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	calls := 0
	r := chi.NewRouter()
	r.Use(IdempotencyMiddleware(&memoryStore{data: map[string]string{}}))
	r.Post("/attend", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"success":true}`))
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/attend", nil)
		req.Header.Set("Idempotency-Key", "attend-reg-1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != `{"success":true}` {
			t.Fatalf("request %d: %d %q", i, rec.Code, rec.Body.String())
		}
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	calls := 0
	r := chi.NewRouter()
	r.Use(IdempotencyMiddleware(&memoryStore{data: map[string]string{}}))
	r.Post("/attend", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/attend", nil)
		req.Header.Set("Idempotency-Key", "k")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times", calls)
	}
}

func TestRequestIDAndTerminalID(t *testing.T) {
	var gotRequest, gotTerminal any
	h := RequestID(TerminalID("gate-1")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequest = r.Context().Value(logger.RequestIDKey)
		gotTerminal = r.Context().Value(logger.TerminalIDKey)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotRequest != "req-1" || rec.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("request id = %v", gotRequest)
	}
	if gotTerminal != "gate-1" {
		t.Fatalf("terminal id = %v", gotTerminal)
	}
}

func TestHealth(t *testing.T) {
	h := Health(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (c *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return true, c.err
	}
	c.counts[key]++
	return c.counts[key] <= limit, nil
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	store := &countingLimiter{counts: map[string]int{}}
	r := chi.NewRouter()
	r.With(RateLimit(store, RateLimitConfig{Requests: 2, Window: time.Minute})).
		Post("/login", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := post("203.0.113.7"); code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, code)
		}
	}
	if code := post("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := post("198.51.100.2"); code != http.StatusOK {
		t.Fatalf("other clients are limited separately, got %d", code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	store := &countingLimiter{counts: map[string]int{}, err: errors.New("redis down")}
	r := chi.NewRouter()
	r.With(RateLimit(store, RateLimitConfig{Requests: 0, Window: time.Minute})).
		Post("/login", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request through on store error, got %d", rec.Code)
	}
}
