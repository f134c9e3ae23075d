package optical

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

const DefaultFrameInterval = 100 * time.Millisecond

// StillLoop samples the surface on a fixed interval and runs a still
// decode on every frame. It stops sampling after the first hit.
type StillLoop struct {
	clock    clock.Clock
	interval time.Duration
	decoder  StillDecoder

	mu      sync.Mutex
	surface camera.Surface
	sink    Sink
	timer   *clock.Timer
	gen     uint64
	running bool
	frame   []byte
}

func NewStillLoop(c clock.Clock, d StillDecoder, interval time.Duration) *StillLoop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &StillLoop{clock: c, decoder: d, interval: interval}
}

func (l *StillLoop) Start(ctx context.Context, s camera.Surface, sink Sink) error {
	if s == nil {
		return domain.ErrSurfaceNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("still loop already running")
	}
	l.gen++
	l.running = true
	l.surface = s
	l.sink = sink
	gen := l.gen
	resetDecoder(l.decoder)
	l.timer = l.clock.AfterFunc(l.interval, func() { l.tick(gen) })
	return nil
}

func (l *StillLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *StillLoop) stopLocked() {
	l.gen++
	l.running = false
	l.timer.Stop()
	l.timer = nil
	l.surface = nil
	l.sink = nil
	resetDecoder(l.decoder)
}

// resetDecoder drops state a decoder may hold between frames, such as a
// relayed payload reported while no loop was sampling.
func resetDecoder(d StillDecoder) {
	if r, ok := d.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// Running reports whether the loop is still sampling.
func (l *StillLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *StillLoop) tick(gen uint64) {
	l.mu.Lock()
	if gen != l.gen || !l.running {
		l.mu.Unlock()
		return
	}
	s := l.surface
	w, h := s.Dimensions()
	if w > 0 && h > 0 {
		l.frame = s.CopyFrame(l.frame)
		if text, ok := l.decoder.Decode(l.frame, w, h); ok && text != "" {
			sink := l.sink
			l.stopLocked()
			l.mu.Unlock()
			sink(domain.RawAcquisition{Text: text, Channel: domain.ChannelOpticalQR, AcquiredAt: l.clock.Now()})
			return
		}
	}
	l.timer = l.clock.AfterFunc(l.interval, func() { l.tick(gen) })
	l.mu.Unlock()
}
