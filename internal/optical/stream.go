package optical

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

// StreamLoop hands the surface to a streaming decoder once and forwards
// every payload it reports until stopped.
type StreamLoop struct {
	clock   clock.Clock
	decoder StreamDecoder

	mu      sync.Mutex
	gen     uint64
	running bool
}

func NewStreamLoop(c clock.Clock, d StreamDecoder) *StreamLoop {
	return &StreamLoop{clock: c, decoder: d}
}

func (l *StreamLoop) Start(ctx context.Context, s camera.Surface, sink Sink) error {
	if s == nil {
		return domain.ErrSurfaceNotReady
	}
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("stream loop already running")
	}
	l.gen++
	l.running = true
	gen := l.gen
	l.mu.Unlock()

	err := l.decoder.DecodeFromSurface(ctx, s, func(text string) {
		l.mu.Lock()
		live := l.running && l.gen == gen
		l.mu.Unlock()
		if !live || text == "" {
			return
		}
		sink(domain.RawAcquisition{Text: text, Channel: domain.ChannelOpticalBarcode, AcquiredAt: l.clock.Now()})
	})
	if err != nil {
		l.Stop()
		return fmt.Errorf("start stream decoder: %w", err)
	}
	return nil
}

// Stop releases the decoder. Payloads reported after Stop are dropped.
func (l *StreamLoop) Stop() {
	l.mu.Lock()
	wasRunning := l.running
	l.gen++
	l.running = false
	l.mu.Unlock()
	if wasRunning {
		l.decoder.Reset()
	}
}

func (l *StreamLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
