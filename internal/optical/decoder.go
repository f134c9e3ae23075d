// Package optical runs the decode loops that turn a bound camera surface
// into raw acquisitions. Symbology decoding itself is a capability the
// loops are given; they own only timing and teardown.
package optical

import (
	"context"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
)

// StillDecoder decodes one RGBA frame. ok is false when nothing was found.
type StillDecoder interface {
	Decode(pixels []byte, width, height int) (text string, ok bool)
}

// StreamDecoder decodes continuously from a live surface and calls found
// for every payload until Reset.
type StreamDecoder interface {
	DecodeFromSurface(ctx context.Context, s camera.Surface, found func(text string)) error
	Reset()
}

// Sink receives decoded acquisitions.
type Sink func(domain.RawAcquisition)

// Loop is a running decode loop over one attached surface.
type Loop interface {
	Start(ctx context.Context, s camera.Surface, sink Sink) error
	Stop()
}
