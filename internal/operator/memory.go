package operator

import (
	"context"
	"sync"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

// MemoryStore keeps the session in process. The console terminal uses
// it; so do tests.
type MemoryStore struct {
	clock clock.Clock

	mu      sync.Mutex
	session *Session
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	return &MemoryStore{clock: c}
}

func (m *MemoryStore) Credential(ctx context.Context) (domain.OperatorCredential, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.Credential, nil
}

func (m *MemoryStore) Current(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, domain.ErrNoOperatorCredential
	}
	if !m.session.ExpiresAt.After(m.clock.Now()) {
		m.session = nil
		return Session{}, domain.ErrNoOperatorCredential
	}
	return *m.session, nil
}

func (m *MemoryStore) SignIn(_ context.Context, s Session) error {
	if err := validate(s, m.clock.Now()); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *MemoryStore) SignOut(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
