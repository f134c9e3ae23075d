package camera

import (
	"context"
	"fmt"
	"sync"
)

// RelayState is the camera state reported by the kiosk webview.
type RelayState string

const (
	RelayGranted         RelayState = "granted"
	RelayDenied          RelayState = "denied"
	RelayNoDevice        RelayState = "no_device"
	RelayOverconstrained RelayState = "overconstrained"
	RelayError           RelayState = "error"
)

type RelayStatus struct {
	State   RelayState `json:"state"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Message string     `json:"message,omitempty"`
}

// Relay serves Devices and Surface for kiosks whose camera runs in the
// webview: the kiosk reports permission and preview size, and the
// manager drives the usual lifecycle against those reports.
type Relay struct {
	mu     sync.Mutex
	status RelayStatus
	bound  bool
	live   int
}

func NewRelay() *Relay {
	return &Relay{}
}

// Report records the latest status from the kiosk.
func (r *Relay) Report(st RelayStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = st
}

func (r *Relay) Status() RelayStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Relay) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	msg := r.status.Message
	if msg == "" {
		msg = fmt.Sprintf("kiosk reported %q", r.status.State)
	}
	switch r.status.State {
	case RelayGranted:
		r.live++
		return &relayStream{relay: r}, nil
	case RelayDenied:
		return nil, fmt.Errorf("%s: %w", msg, ErrNotAllowed)
	case RelayNoDevice:
		return nil, fmt.Errorf("%s: %w", msg, ErrNotFound)
	case RelayOverconstrained:
		return nil, fmt.Errorf("%s (%dx%d): %w", msg, c.Width, c.Height, ErrOverconstrained)
	case "":
		return nil, fmt.Errorf("kiosk has not reported camera status")
	default:
		return nil, fmt.Errorf("%s", msg)
	}
}

// Surface is a SurfaceProvider: the relay counts as mounted once the
// kiosk reports a non-zero preview size.
func (r *Relay) Surface() Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Width <= 0 || r.status.Height <= 0 {
		return nil
	}
	return r
}

func (r *Relay) Bind(Stream) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = true
	return nil
}

func (r *Relay) Unbind() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bound = false
}

func (r *Relay) Dimensions() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.Width, r.status.Height
}

// CopyFrame returns an empty frame; pixels stay in the kiosk, which runs
// the decoder and relays decoded text instead.
func (r *Relay) CopyFrame(dst []byte) []byte {
	return dst[:0]
}

// Bound reports whether a stream is bound to the relay surface.
func (r *Relay) Bound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bound
}

// LiveTracks reports how many relayed tracks have not been stopped.
func (r *Relay) LiveTracks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

type relayStream struct {
	relay *Relay
	once  sync.Once
}

func (s *relayStream) Tracks() []Track { return []Track{s} }

func (s *relayStream) Stop() {
	s.once.Do(func() {
		s.relay.mu.Lock()
		s.relay.live--
		s.relay.mu.Unlock()
	})
}
