// Package operator holds the signed-in inspector's credential for a
// terminal's shift.
package operator

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
)

// Session is one inspector's shift on a terminal.
type Session struct {
	InspectorID string                    `json:"inspectorId"`
	Name        string                    `json:"name,omitempty"`
	Credential  domain.OperatorCredential `json:"credential"`
	ExpiresAt   time.Time                 `json:"expiresAt"`
}

// Store keeps the current operator session. Credential returns
// domain.ErrNoOperatorCredential when nobody is signed in or the
// session expired.
type Store interface {
	Credential(ctx context.Context) (domain.OperatorCredential, error)
	Current(ctx context.Context) (Session, error)
	SignIn(ctx context.Context, s Session) error
	SignOut(ctx context.Context) error
}

var ErrInvalidSession = errors.New("operator session requires a credential and a future expiry")

func validate(s Session, now time.Time) error {
	if s.Credential.IsZero() || !s.ExpiresAt.After(now) {
		return ErrInvalidSession
	}
	return nil
}
