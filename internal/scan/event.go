package scan

import (
	"time"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
)

// Event is an input to Reduce.
type Event interface{ event() }

// ModeSelected switches the active channel.
type ModeSelected struct{ Mode Mode }

// Activated reports the end of a channel activation started for Gen.
type Activated struct {
	Gen uint64
	Err error
}

// Acquired is a raw detection. Gen is the activation it came from and is
// ignored for manual entry. Attempt is the identity the code will carry.
type Acquired struct {
	Gen     uint64
	Attempt string
	Raw     domain.RawAcquisition
}

// Classified carries the classifier's result for Attempt.
type Classified struct {
	Attempt string
	Code    domain.ClassifiedCode
	Err     error
}

// Verified carries the dispatcher's result for Attempt.
type Verified struct {
	Attempt string
	Outcome domain.VerificationOutcome
	Err     error
}

type RetryRequested struct{}

type ScanAnotherRequested struct{}

// Suspended tears the active channel down: page hidden, navigation,
// shutdown.
type Suspended struct{}

type AttendRequested struct{}

// AttendanceMarked carries the result of marking Attempt's attendee.
type AttendanceMarked struct {
	Attempt string
	At      time.Time
	Err     error
}

func (ModeSelected) event()         {}
func (Activated) event()            {}
func (Acquired) event()             {}
func (Classified) event()           {}
func (Verified) event()             {}
func (RetryRequested) event()       {}
func (ScanAnotherRequested) event() {}
func (Suspended) event()            {}
func (AttendRequested) event()      {}
func (AttendanceMarked) event()     {}

// EventName is the name used for an event in logs.
func EventName(e Event) string {
	switch e.(type) {
	case ModeSelected:
		return "mode_selected"
	case Activated:
		return "activated"
	case Acquired:
		return "acquired"
	case Classified:
		return "classified"
	case Verified:
		return "verified"
	case RetryRequested:
		return "retry"
	case ScanAnotherRequested:
		return "scan_another"
	case Suspended:
		return "suspended"
	case AttendRequested:
		return "attend"
	case AttendanceMarked:
		return "attendance_marked"
	default:
		return "unknown"
	}
}

// Effect is work Reduce asks the runtime to perform.
type Effect interface{ effect() }

// ActivateChannel starts the channel for Mode under generation Gen.
type ActivateChannel struct {
	Mode Mode
	Gen  uint64
}

// DeactivateChannel tears down whatever channel is active. It always runs
// before any later ActivateChannel.
type DeactivateChannel struct{}

type ClassifyCode struct {
	Attempt string
	Raw     domain.RawAcquisition
}

type VerifyCode struct {
	Attempt string
	Code    domain.ClassifiedCode
}

type MarkAttendance struct {
	Attempt        string
	RegistrationID string
}

func (ActivateChannel) effect()   {}
func (DeactivateChannel) effect() {}
func (ClassifyCode) effect()      {}
func (VerifyCode) effect()        {}
func (MarkAttendance) effect()    {}
