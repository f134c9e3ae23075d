package scan

import (
	"context"
	"fmt"
	"sync"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/internal/hid"
	"github.com/diagnosis/luxsuv-checkin/internal/optical"
)

// Channel is one acquisition channel. Activate returns once the channel
// is delivering to sink, or with the reason it cannot. Deactivate
// releases everything the channel holds and is safe to call at any time.
type Channel interface {
	Activate(ctx context.Context, sink func(domain.RawAcquisition)) error
	Deactivate()
}

// Optical is the camera shared by the optical channels. Only one of its
// channels holds the camera at a time.
type Optical struct {
	camera  *camera.Manager
	surface camera.SurfaceProvider
	facing  camera.Facing

	mu      sync.Mutex
	running optical.Loop
}

func NewOptical(m *camera.Manager, surface camera.SurfaceProvider, facing camera.Facing) *Optical {
	if facing == "" {
		facing = camera.FacingEnvironment
	}
	return &Optical{camera: m, surface: surface, facing: facing}
}

// Channel returns the optical channel that decodes with loop.
func (o *Optical) Channel(loop optical.Loop) Channel {
	return &opticalChannel{rig: o, loop: loop}
}

type opticalChannel struct {
	rig  *Optical
	loop optical.Loop
}

func (c *opticalChannel) Activate(ctx context.Context, sink func(domain.RawAcquisition)) error {
	o := c.rig
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()

	if _, err := o.camera.Acquire(ctx, o.facing); err != nil {
		return err
	}
	surface, err := o.camera.Attach(ctx, o.surface)
	if err != nil {
		o.camera.Release()
		return err
	}
	if err := ctx.Err(); err != nil {
		o.camera.Release()
		return err
	}
	if err := c.loop.Start(ctx, surface, sink); err != nil {
		o.camera.Release()
		return fmt.Errorf("start decode loop: %w", err)
	}
	o.running = c.loop
	return nil
}

func (c *opticalChannel) Deactivate() {
	o := c.rig
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

// stopLocked stops the decode loop before the stream goes away.
func (o *Optical) stopLocked() {
	if o.running != nil {
		o.running.Stop()
		o.running = nil
	}
	o.camera.Release()
}

// HID is the keyboard-wedge channel: the aggregator listens on the key
// feed only while the channel is active.
type HID struct {
	feed       *hid.Feed
	aggregator *hid.Aggregator

	mu     sync.Mutex
	cancel func()
}

func NewHID(feed *hid.Feed, a *hid.Aggregator) *HID {
	return &HID{feed: feed, aggregator: a}
}

func (h *HID) Activate(ctx context.Context, sink func(domain.RawAcquisition)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	// A mode switch may have cancelled ctx and run Deactivate while we
	// waited for the lock.
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.aggregator.Attach(sink)
	h.cancel = h.feed.Listen(h.aggregator.HandleKey)
	return nil
}

func (h *HID) Deactivate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.aggregator.Detach()
}
