// Package scan is the acquisition coordinator: it decides which channel
// is active, owns the single in-flight verification and moves a scan
// session through its phases.
//
// State changes go through Reduce, a pure function of (Session, Event).
// Async completions (camera activation, verification, attendance) come
// back as events tagged with the generation or attempt they belong to,
// and are dropped when the session has moved on.
package scan

import (
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
)

// Mode is the operator's input choice.
type Mode string

const (
	ModeOpticalQR      Mode = "optical-qr"
	ModeOpticalBarcode Mode = "optical-barcode"
	ModeHID            Mode = "hid"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeOpticalQR, ModeOpticalBarcode, ModeHID:
		return Mode(s), true
	default:
		return "", false
	}
}

// Optical reports whether the mode holds the camera.
func (m Mode) Optical() bool {
	return m == ModeOpticalQR || m == ModeOpticalBarcode
}

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseAcquiring   Phase = "acquiring"
	PhaseClassifying Phase = "classifying"
	PhaseVerifying   Phase = "verifying"
	PhaseResult      Phase = "result"
)

type Attendance string

const (
	AttendanceNone     Attendance = ""
	AttendanceMarking  Attendance = "marking"
	AttendanceRecorded Attendance = "marked"
	AttendanceFailed   Attendance = "failed"
)

// Session is the coordinator's working state.
type Session struct {
	Mode  Mode  `json:"mode,omitempty"`
	Phase Phase `json:"phase"`

	// Attempt identifies the code currently being classified or
	// verified.
	Attempt string                      `json:"attempt,omitempty"`
	Code    domain.ClassifiedCode       `json:"code"`
	Source  domain.Channel              `json:"source,omitempty"`
	Outcome *domain.VerificationOutcome `json:"outcome,omitempty"`

	// Notice is a recoverable, operator-facing message such as a format
	// error. It does not end the session.
	Notice string `json:"notice,omitempty"`

	// Fault is set when the camera could not be started; Retry clears it.
	Fault         string `json:"fault,omitempty"`
	FaultCategory string `json:"faultCategory,omitempty"`

	// AuthRequired means the operator credential was missing and the
	// operator has to sign in again before scanning.
	AuthRequired bool `json:"authRequired,omitempty"`

	ChannelActive bool `json:"channelActive"`

	// Gen changes whenever a channel is (re)activated or torn down.
	Gen uint64 `json:"-"`

	Attendance        Attendance `json:"attendance,omitempty"`
	AttendanceMessage string     `json:"attendanceMessage,omitempty"`

	// resume is where a rejected code returns to.
	resume Phase
}

// Idle is the initial session.
func Idle() Session {
	return Session{Phase: PhaseIdle}
}

// Busy reports whether a code is being classified or verified.
func (s Session) Busy() bool {
	return s.Phase == PhaseClassifying || s.Phase == PhaseVerifying
}
