package camera

import (
	"context"
	"errors"
	"testing"

	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
)

func TestRelayLifecycle(t *testing.T) {
	relay := NewRelay()
	m := NewManager(relay, clock.Fake(epoch), Options{})
	ctx := context.Background()

	_, err := m.Acquire(ctx, FacingEnvironment)
	var perr *PermissionError
	if !errors.As(err, &perr) || perr.Kind != PermissionUnknown {
		t.Fatalf("unreported relay should fail as unknown, got %v", err)
	}

	relay.Report(RelayStatus{State: RelayDenied})
	_, err = m.Acquire(ctx, FacingEnvironment)
	if !errors.As(err, &perr) || perr.Kind != PermissionDenied {
		t.Fatalf("expected denied, got %v", err)
	}

	relay.Report(RelayStatus{State: RelayGranted, Width: 1280, Height: 720})
	if _, err := m.Acquire(ctx, FacingEnvironment); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := m.Attach(ctx, relay.Surface); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if !relay.Bound() || relay.LiveTracks() != 1 {
		t.Fatalf("bound=%v live=%d", relay.Bound(), relay.LiveTracks())
	}

	m.Release()
	m.Release()
	if relay.Bound() || relay.LiveTracks() != 0 {
		t.Fatalf("after release bound=%v live=%d", relay.Bound(), relay.LiveTracks())
	}
}

func TestRelaySurfaceNeedsDimensions(t *testing.T) {
	relay := NewRelay()
	relay.Report(RelayStatus{State: RelayGranted})
	if relay.Surface() != nil {
		t.Fatal("surface should not be mounted without dimensions")
	}
}
