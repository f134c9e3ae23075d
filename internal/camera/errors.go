package camera

import (
	"errors"
	"fmt"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
)

type PermissionKind string

const (
	PermissionDenied        PermissionKind = "permission_denied"
	NoDeviceFound           PermissionKind = "no_device_found"
	ConstraintUnsatisfiable PermissionKind = "constraint_unsatisfiable"
	PermissionUnknown       PermissionKind = "unknown"
)

var hints = map[PermissionKind]string{
	PermissionDenied:        "Camera access is blocked. Allow camera access for this terminal, then tap Retry.",
	NoDeviceFound:           "No camera was found. Connect a camera or switch to the scanner input.",
	ConstraintUnsatisfiable: "The camera cannot deliver the requested picture. Tap Retry or switch to the scanner input.",
	PermissionUnknown:       "The camera could not be started. Tap Retry or switch to the scanner input.",
}

// PermissionError is a classified camera acquisition failure with an
// operator-facing remediation hint.
type PermissionError struct {
	Kind PermissionKind
	Hint string
	Err  error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera %s", e.Kind)
	}
	return fmt.Sprintf("camera %s: %v", e.Kind, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

func (e *PermissionError) Category() string { return domain.CategoryPermission }

// classifyOpenError maps a Devices.Open failure onto a PermissionError.
func classifyOpenError(err error) *PermissionError {
	kind := PermissionUnknown
	switch {
	case errors.Is(err, ErrNotAllowed):
		kind = PermissionDenied
	case errors.Is(err, ErrNotFound):
		kind = NoDeviceFound
	case errors.Is(err, ErrOverconstrained):
		kind = ConstraintUnsatisfiable
	}
	return &PermissionError{Kind: kind, Hint: hints[kind], Err: err}
}

// Hint returns the operator-facing remediation text for any camera
// error, or "" when err is not a camera error.
func Hint(err error) string {
	var perr *PermissionError
	if errors.As(err, &perr) {
		return perr.Hint
	}
	switch {
	case errors.Is(err, domain.ErrSurfaceNotReady):
		return "The camera preview did not appear in time. Tap Retry."
	case errors.Is(err, domain.ErrStreamReleased):
		return "The camera was stopped while starting. Tap Retry."
	}
	return ""
}
