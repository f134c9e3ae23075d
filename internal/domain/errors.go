package domain

import (
	"context"
	"errors"
)

var (
	// ErrInvalidFormat is returned by the classifier for input that is
	// neither an optical payload nor a 6/7-digit code.
	ErrInvalidFormat = errors.New("invalid code format")
	// ErrNoOperatorCredential means no inspector is signed in on this
	// terminal; the operator has to authenticate again.
	ErrNoOperatorCredential = errors.New("operator credential missing")
	// ErrSurfaceNotReady means the render surface did not appear within
	// the attach retry window.
	ErrSurfaceNotReady = errors.New("video surface not ready")
	// ErrStreamReleased means the camera stream was released while it
	// was still being used.
	ErrStreamReleased = errors.New("camera stream already released")
)

// Error categories reported in logs and scan events.
const (
	CategoryPermission   = "permission"
	CategoryInvalid      = "invalid_format"
	CategoryDispatch     = "dispatch"
	CategoryPrecondition = "precondition"
	CategoryResourceRace = "resource_race"
	CategoryCancel       = "cancel"
	CategoryUnknown      = "unknown"
)

// Categorizer is implemented by typed errors that know their category.
type Categorizer interface {
	Category() string
}

// Category maps err onto the scan error taxonomy.
func Category(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryCancel
	}
	if errors.Is(err, ErrInvalidFormat) {
		return CategoryInvalid
	}
	if errors.Is(err, ErrNoOperatorCredential) {
		return CategoryPrecondition
	}
	if errors.Is(err, ErrSurfaceNotReady) || errors.Is(err, ErrStreamReleased) {
		return CategoryResourceRace
	}
	var c Categorizer
	if errors.As(err, &c) {
		return c.Category()
	}
	return CategoryUnknown
}
