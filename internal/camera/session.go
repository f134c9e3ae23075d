// Package camera owns the camera permission lifecycle: it opens a
// stream, binds it to a render surface and releases both on every exit
// path so the camera hardware is never left locked.
package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

type Options struct {
	Width  int
	Height int
	// AttachRetry is how long Attach waits for the surface to mount.
	AttachRetry         time.Duration
	AttachRetryInterval time.Duration
}

// Manager holds at most one camera stream at a time.
type Manager struct {
	devices Devices
	clock   clock.Clock
	opts    Options

	mu      sync.Mutex
	stream  Stream
	surface Surface
	// session changes on every Acquire and Release; work started under
	// an older session must not touch the current stream.
	session uint64
}

func NewManager(devices Devices, c clock.Clock, opts Options) *Manager {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	if opts.AttachRetry <= 0 {
		opts.AttachRetry = 300 * time.Millisecond
	}
	if opts.AttachRetryInterval <= 0 {
		opts.AttachRetryInterval = 50 * time.Millisecond
	}
	return &Manager{devices: devices, clock: c, opts: opts}
}

// Acquire opens a camera stream facing the given way. Any stream held
// from before is released first. Failures are *PermissionError, or the
// context error when ctx ended while the platform prompt was open.
func (m *Manager) Acquire(ctx context.Context, facing Facing) (Stream, error) {
	m.Release()

	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	stream, err := m.devices.Open(ctx, Constraints{Facing: facing, Width: m.opts.Width, Height: m.opts.Height})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyOpenError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil || session != m.session {
		// released or superseded while the prompt was open
		stopTracks(stream)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrStreamReleased
	}
	m.stream = stream
	return stream, nil
}

// Attach binds the acquired stream to the surface returned by provider.
// The surface may mount a frame later than the stream starts, so Attach
// polls for it until the retry window closes and then fails with
// domain.ErrSurfaceNotReady.
func (m *Manager) Attach(ctx context.Context, provider SurfaceProvider) (Surface, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	deadline := m.clock.Now().Add(m.opts.AttachRetry)
	for {
		m.mu.Lock()
		if m.session != session || m.stream == nil {
			m.mu.Unlock()
			return nil, domain.ErrStreamReleased
		}
		if s := provider(); s != nil {
			if err := s.Bind(m.stream); err != nil {
				m.mu.Unlock()
				return nil, fmt.Errorf("bind stream: %w", err)
			}
			m.surface = s
			m.mu.Unlock()
			return s, nil
		}
		m.mu.Unlock()

		if !m.clock.Now().Before(deadline) {
			return nil, domain.ErrSurfaceNotReady
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.clock.After(m.opts.AttachRetryInterval):
		}
	}
}

// Release stops every track and clears the surface binding. It is safe
// to call at any time, any number of times.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session++
	if m.surface != nil {
		m.surface.Unbind()
		m.surface = nil
	}
	if m.stream != nil {
		stopTracks(m.stream)
		m.stream = nil
	}
}

// Active reports whether a stream is currently held.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream != nil
}

func stopTracks(s Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
