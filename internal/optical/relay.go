package optical

import (
	"context"
	"sync"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
)

// RelayDecoder is both decoder capabilities for kiosks that decode in the
// webview and report the text. While a stream decode is attached,
// delivered text goes to its callback; otherwise it is held for the next
// still decode.
type RelayDecoder struct {
	mu      sync.Mutex
	found   func(string)
	pending string
}

func NewRelayDecoder() *RelayDecoder {
	return &RelayDecoder{}
}

// Deliver reports one decoded payload from the kiosk.
func (r *RelayDecoder) Deliver(text string) {
	r.mu.Lock()
	found := r.found
	if found == nil {
		r.pending = text
	}
	r.mu.Unlock()
	if found != nil {
		found(text)
	}
}

func (r *RelayDecoder) Decode(_ []byte, _, _ int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text := r.pending
	r.pending = ""
	return text, text != ""
}

func (r *RelayDecoder) DecodeFromSurface(ctx context.Context, _ camera.Surface, found func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.found = found
	r.pending = ""
	return nil
}

func (r *RelayDecoder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.found = nil
	r.pending = ""
}
