package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/diagnosis/luxsuv-checkin/internal/classifier"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
)

// Verifier is the verification dispatcher.
type Verifier interface {
	Verify(ctx context.Context, code domain.ClassifiedCode, cred domain.OperatorCredential) (domain.VerificationOutcome, error)
	MarkAttended(ctx context.Context, registrationID string, cred domain.OperatorCredential) error
}

// CredentialSource returns the signed-in operator's credential, or
// domain.ErrNoOperatorCredential when nobody is signed in.
type CredentialSource interface {
	Credential(ctx context.Context) (domain.OperatorCredential, error)
}

// Transition is one applied event, reported to observers.
type Transition struct {
	Event   Event
	From    Session
	To      Session
	Effects []Effect
}

type Options struct {
	Channels    map[Mode]Channel
	Verifier    Verifier
	Credentials CredentialSource
	Clock       clock.Clock
	// Go runs activation and verification work. It defaults to starting
	// a goroutine.
	Go func(func())
	// NewAttemptID defaults to a random UUID.
	NewAttemptID func() string
}

var ErrUnknownMode = errors.New("unknown scan mode")

// Coordinator runs Reduce against the live session and performs the
// effects it returns. Events are applied one at a time in arrival
// order; effects run outside the session lock.
type Coordinator struct {
	channels    map[Mode]Channel
	verifier    Verifier
	credentials CredentialSource
	clock       clock.Clock
	spawn       func(func())
	newID       func() string
	ctx         context.Context
	stop        context.CancelFunc

	mu        sync.Mutex
	session   Session
	queue     []Event
	draining  bool
	observers []func(Transition)

	// touched only by the draining goroutine
	active   Channel
	deactive context.CancelFunc
}

func New(opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Go == nil {
		opts.Go = func(f func()) { go f() }
	}
	if opts.NewAttemptID == nil {
		opts.NewAttemptID = uuid.NewString
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		channels:    opts.Channels,
		verifier:    opts.Verifier,
		credentials: opts.Credentials,
		clock:       opts.Clock,
		spawn:       opts.Go,
		newID:       opts.NewAttemptID,
		ctx:         ctx,
		stop:        cancel,
		session:     Idle(),
	}
}

// Observe registers fn to be called after every applied event.
func (c *Coordinator) Observe(fn func(Transition)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns the current session.
func (c *Coordinator) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Coordinator) SelectMode(mode Mode) error {
	if _, ok := ParseMode(string(mode)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if _, ok := c.channels[mode]; !ok {
		return fmt.Errorf("%w: %q has no channel on this terminal", ErrUnknownMode, mode)
	}
	c.Dispatch(ModeSelected{Mode: mode})
	return nil
}

// SubmitManualCode feeds typed text straight to the classifier,
// bypassing the acquisition channels.
func (c *Coordinator) SubmitManualCode(text string) {
	c.Dispatch(Acquired{
		Attempt: c.newID(),
		Raw: domain.RawAcquisition{
			Text:       strings.TrimSpace(text),
			Channel:    domain.ChannelManual,
			AcquiredAt: c.clock.Now(),
		},
	})
}

func (c *Coordinator) Retry()        { c.Dispatch(RetryRequested{}) }
func (c *Coordinator) ScanAnother()  { c.Dispatch(ScanAnotherRequested{}) }
func (c *Coordinator) Suspend()      { c.Dispatch(Suspended{}) }
func (c *Coordinator) MarkAttended() { c.Dispatch(AttendRequested{}) }

// Close suspends the session and abandons outstanding verifications.
func (c *Coordinator) Close() {
	c.Suspend()
	c.stop()
}

// Dispatch applies e. If another goroutine is already applying events,
// e is queued behind them and Dispatch returns at once; otherwise the
// queue is drained before Dispatch returns.
func (c *Coordinator) Dispatch(e Event) {
	c.mu.Lock()
	c.queue = append(c.queue, e)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true

	for len(c.queue) > 0 {
		e := c.queue[0]
		c.queue = c.queue[1:]
		from := c.session
		to, effects := Reduce(from, e)
		c.session = to
		observers := c.observers
		c.mu.Unlock()

		t := Transition{Event: e, From: from, To: to, Effects: effects}
		for _, fn := range observers {
			fn(t)
		}
		for _, eff := range effects {
			c.perform(eff)
		}

		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
}

func (c *Coordinator) perform(eff Effect) {
	switch eff := eff.(type) {
	case DeactivateChannel:
		c.deactivate()
	case ActivateChannel:
		c.activate(eff)
	case ClassifyCode:
		code, err := classifier.ClassifyAcquisition(eff.Raw)
		c.Dispatch(Classified{Attempt: eff.Attempt, Code: code, Err: err})
	case VerifyCode:
		c.spawn(func() { c.verify(eff) })
	case MarkAttendance:
		c.spawn(func() { c.markAttendance(eff) })
	}
}

func (c *Coordinator) deactivate() {
	if c.deactive != nil {
		c.deactive()
		c.deactive = nil
	}
	if c.active != nil {
		c.active.Deactivate()
		c.active = nil
	}
}

func (c *Coordinator) activate(eff ActivateChannel) {
	ch, ok := c.channels[eff.Mode]
	if !ok {
		c.Dispatch(Activated{Gen: eff.Gen, Err: fmt.Errorf("%w: %q", ErrUnknownMode, eff.Mode)})
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.active = ch
	c.deactive = cancel

	gen := eff.Gen
	sink := func(raw domain.RawAcquisition) {
		c.Dispatch(Acquired{Gen: gen, Attempt: c.newID(), Raw: raw})
	}
	c.spawn(func() {
		err := ch.Activate(ctx, sink)
		if err != nil {
			logger.WarnContext(ctx, "channel activation failed",
				"mode", eff.Mode, "category", domain.Category(err), "error", err)
		}
		c.Dispatch(Activated{Gen: gen, Err: err})
	})
}

func (c *Coordinator) verify(eff VerifyCode) {
	ctx := context.WithValue(c.ctx, logger.ScanAttemptKey, eff.Attempt)
	cred, err := c.credentials.Credential(ctx)
	if err != nil {
		c.Dispatch(Verified{Attempt: eff.Attempt, Err: credentialError(err)})
		return
	}
	out, err := c.verifier.Verify(ctx, eff.Code, cred)
	if err != nil && !errors.Is(err, domain.ErrNoOperatorCredential) {
		logger.WarnContext(ctx, "verification dispatch failed",
			"code_kind", eff.Code.Kind.String(), "category", domain.Category(err), "error", err)
	}
	c.Dispatch(Verified{Attempt: eff.Attempt, Outcome: out, Err: err})
}

func (c *Coordinator) markAttendance(eff MarkAttendance) {
	ctx := context.WithValue(c.ctx, logger.ScanAttemptKey, eff.Attempt)
	cred, err := c.credentials.Credential(ctx)
	if err != nil {
		c.Dispatch(AttendanceMarked{Attempt: eff.Attempt, Err: credentialError(err)})
		return
	}
	err = c.verifier.MarkAttended(ctx, eff.RegistrationID, cred)
	if err != nil {
		logger.WarnContext(ctx, "mark attended failed",
			"registration_id", eff.RegistrationID, "category", domain.Category(err), "error", err)
	}
	c.Dispatch(AttendanceMarked{Attempt: eff.Attempt, At: c.clock.Now(), Err: err})
}

// credentialError keeps a missing credential distinguishable from a
// store that could not be read.
func credentialError(err error) error {
	if errors.Is(err, domain.ErrNoOperatorCredential) {
		return err
	}
	return fmt.Errorf("read operator credential: %w", err)
}
