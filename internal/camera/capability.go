package camera

import (
	"context"
	"errors"
)

type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Constraints describe the stream a caller would like to receive.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Track is one media track of a stream.
type Track interface {
	Stop()
}

// Stream is a live camera stream.
type Stream interface {
	Tracks() []Track
}

// Devices is the platform camera capability.
type Devices interface {
	// Open requests camera access and returns a live stream. Failures
	// should wrap ErrNotAllowed, ErrNotFound or ErrOverconstrained when
	// the platform reports one of those conditions.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Surface is a render target a stream can be bound to.
type Surface interface {
	Bind(s Stream) error
	Unbind()
	// Dimensions returns the current video size; zero until the first
	// frame has been rendered.
	Dimensions() (width, height int)
	// CopyFrame copies the current frame as RGBA pixels into dst,
	// growing it as needed, and returns the filled slice.
	CopyFrame(dst []byte) []byte
}

// SurfaceProvider returns the mounted surface, or nil while the UI has
// not mounted it yet.
type SurfaceProvider func() Surface

// Errors platform implementations wrap so failures can be classified.
var (
	ErrNotAllowed      = errors.New("camera permission not granted")
	ErrNotFound        = errors.New("no camera device")
	ErrOverconstrained = errors.New("camera constraints unsatisfiable")
)
