package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

// ---------- Fakes ----------

type fakeTrack struct {
	mu      sync.Mutex
	stopped int
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped++
	t.mu.Unlock()
}

func (t *fakeTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped > 0
}

type fakeStream struct {
	tracks []*fakeTrack
}

func newFakeStream() *fakeStream {
	return &fakeStream{tracks: []*fakeTrack{{}, {}}}
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) live() int {
	n := 0
	for _, t := range s.tracks {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

type fakeDevices struct {
	err     error
	opened  []*fakeStream
	lastReq Constraints
	gate    chan struct{}
}

func (d *fakeDevices) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.lastReq = c
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeStream()
	d.opened = append(d.opened, s)
	return s, nil
}

type fakeSurface struct {
	bound   Stream
	unbinds int
	bindErr error
	w, h    int
}

func (s *fakeSurface) Bind(st Stream) error {
	if s.bindErr != nil {
		return s.bindErr
	}
	s.bound = st
	return nil
}

func (s *fakeSurface) Unbind() { s.bound = nil; s.unbinds++ }

func (s *fakeSurface) Dimensions() (int, int) { return s.w, s.h }

func (s *fakeSurface) CopyFrame(dst []byte) []byte { return dst[:0] }

var epoch = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

// ---------- Tests ----------

func TestAcquireAttachRelease(t *testing.T) {
	devices := &fakeDevices{}
	m := NewManager(devices, clock.Fake(epoch), Options{Width: 1920, Height: 1080})
	ctx := context.Background()

	if _, err := m.Acquire(ctx, FacingEnvironment); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if devices.lastReq.Facing != FacingEnvironment || devices.lastReq.Width != 1920 {
		t.Fatalf("constraints = %+v", devices.lastReq)
	}

	surface := &fakeSurface{w: 640, h: 480}
	got, err := m.Attach(ctx, func() Surface { return surface })
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if got != surface || surface.bound == nil {
		t.Fatal("stream not bound to surface")
	}

	m.Release()
	if m.Active() {
		t.Fatal("manager still active after Release")
	}
	if devices.opened[0].live() != 0 {
		t.Fatal("tracks left running after Release")
	}
	if surface.bound != nil {
		t.Fatal("surface binding not cleared")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	devices := &fakeDevices{}
	m := NewManager(devices, clock.Fake(epoch), Options{})

	m.Release()
	m.Release()

	if _, err := m.Acquire(context.Background(), FacingEnvironment); err != nil {
		t.Fatal(err)
	}
	m.Release()
	m.Release()

	if devices.opened[0].live() != 0 || m.Active() {
		t.Fatal("expected no active tracks")
	}
	for _, tr := range devices.opened[0].tracks {
		if tr.stopped != 1 {
			t.Fatalf("track stopped %d times, want 1", tr.stopped)
		}
	}
}

func TestAcquireReleasesPreviousStream(t *testing.T) {
	devices := &fakeDevices{}
	m := NewManager(devices, clock.Fake(epoch), Options{})
	ctx := context.Background()

	m.Acquire(ctx, FacingEnvironment)
	m.Acquire(ctx, FacingEnvironment)

	if devices.opened[0].live() != 0 {
		t.Fatal("first stream still live after re-acquire")
	}
	if devices.opened[1].live() != 2 {
		t.Fatal("second stream should be live")
	}
}

func TestAcquireClassifiesFailures(t *testing.T) {
	tests := []struct {
		err  error
		want PermissionKind
	}{
		{fmt.Errorf("NotAllowedError: %w", ErrNotAllowed), PermissionDenied},
		{fmt.Errorf("NotFoundError: %w", ErrNotFound), NoDeviceFound},
		{fmt.Errorf("OverconstrainedError: %w", ErrOverconstrained), ConstraintUnsatisfiable},
		{errors.New("AbortError"), PermissionUnknown},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			m := NewManager(&fakeDevices{err: tt.err}, clock.Fake(epoch), Options{})
			_, err := m.Acquire(context.Background(), FacingEnvironment)

			var perr *PermissionError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *PermissionError, got %v", err)
			}
			if perr.Kind != tt.want || perr.Hint == "" {
				t.Fatalf("kind = %s hint = %q", perr.Kind, perr.Hint)
			}
			if domain.Category(err) != domain.CategoryPermission {
				t.Fatalf("category = %s", domain.Category(err))
			}
		})
	}
}

func TestAttachWaitsForSurface(t *testing.T) {
	c := clock.Fake(epoch)
	m := NewManager(&fakeDevices{}, c, Options{})
	ctx := context.Background()
	m.Acquire(ctx, FacingEnvironment)

	var (
		mu      sync.Mutex
		mounted *fakeSurface
	)
	provider := func() Surface {
		mu.Lock()
		defer mu.Unlock()
		if mounted == nil {
			return nil
		}
		return mounted
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Attach(ctx, provider)
		done <- err
	}()

	c.WaitForTimers(1)
	mu.Lock()
	mounted = &fakeSurface{w: 10, h: 10}
	mu.Unlock()
	c.Advance(50 * time.Millisecond)

	if err := <-done; err != nil {
		t.Fatalf("Attach: %v", err)
	}
}

func TestAttachGivesUpWithSurfaceNotReady(t *testing.T) {
	c := clock.Fake(epoch)
	m := NewManager(&fakeDevices{}, c, Options{AttachRetry: 300 * time.Millisecond, AttachRetryInterval: 50 * time.Millisecond})
	ctx := context.Background()
	m.Acquire(ctx, FacingEnvironment)

	done := make(chan error, 1)
	go func() {
		_, err := m.Attach(ctx, func() Surface { return nil })
		done <- err
	}()

	for i := 0; i < 6; i++ {
		c.WaitForTimers(1)
		c.Advance(50 * time.Millisecond)
	}

	err := <-done
	if !errors.Is(err, domain.ErrSurfaceNotReady) {
		t.Fatalf("expected ErrSurfaceNotReady, got %v", err)
	}
	if Hint(err) == "" {
		t.Fatal("expected a remediation hint")
	}
}

func TestAttachAfterReleaseFails(t *testing.T) {
	m := NewManager(&fakeDevices{}, clock.Fake(epoch), Options{})
	m.Acquire(context.Background(), FacingEnvironment)
	m.Release()

	_, err := m.Attach(context.Background(), func() Surface { return &fakeSurface{} })
	if !errors.Is(err, domain.ErrStreamReleased) {
		t.Fatalf("expected ErrStreamReleased, got %v", err)
	}
}

func TestReleaseDuringPromptStopsLateStream(t *testing.T) {
	devices := &fakeDevices{gate: make(chan struct{})}
	m := NewManager(devices, clock.Fake(epoch), Options{})

	done := make(chan error, 1)
	go func() {
		_, err := m.Acquire(context.Background(), FacingEnvironment)
		done <- err
	}()

	// Acquire has bumped the session before blocking in Open; wait until
	// it is parked there, then release underneath it.
	for {
		m.mu.Lock()
		s := m.session
		m.mu.Unlock()
		if s == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	m.Release()
	close(devices.gate)

	if err := <-done; !errors.Is(err, domain.ErrStreamReleased) {
		t.Fatalf("expected ErrStreamReleased, got %v", err)
	}
	if devices.opened[0].live() != 0 || m.Active() {
		t.Fatal("late stream was not stopped")
	}
}
