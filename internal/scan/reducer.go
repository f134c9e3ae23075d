package scan

import (
	"errors"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/internal/verify"
)

const (
	NoticeInvalidFormat = "Invalid code format. Scan again or enter the code manually."
	MessageCameraFailed = "The camera could not be started."
)

// Reduce returns the session after e and the effects the runtime must
// perform, in order. Events that do not apply to the current session
// (stale generations or attempts, input while busy) leave it unchanged
// and produce no effects.
func Reduce(s Session, e Event) (Session, []Effect) {
	switch e := e.(type) {
	case ModeSelected:
		return selectMode(s, e.Mode)
	case Activated:
		return activated(s, e)
	case Acquired:
		return acquired(s, e)
	case Classified:
		return classified(s, e)
	case Verified:
		return verified(s, e)
	case RetryRequested:
		return retry(s)
	case ScanAnotherRequested:
		return scanAnother(s)
	case Suspended:
		return suspend(s)
	case AttendRequested:
		return attend(s)
	case AttendanceMarked:
		return attendanceMarked(s, e)
	}
	return s, nil
}

func selectMode(s Session, m Mode) (Session, []Effect) {
	if _, ok := ParseMode(string(m)); !ok {
		return s, nil
	}
	next := Session{Mode: m, Phase: PhaseAcquiring, Gen: s.Gen + 1}
	return next, []Effect{DeactivateChannel{}, ActivateChannel{Mode: m, Gen: next.Gen}}
}

func activated(s Session, e Activated) (Session, []Effect) {
	if e.Gen != s.Gen {
		return s, nil
	}
	if e.Err == nil {
		s.ChannelActive = true
		// a manual code may have been verified while the camera prompt
		// was still open
		if s.Phase == PhaseResult && s.Outcome != nil && s.Outcome.Success && s.Mode.Optical() {
			return release(s)
		}
		return s, nil
	}

	s.ChannelActive = false
	s.Fault = camera.Hint(e.Err)
	if s.Fault == "" {
		s.Fault = MessageCameraFailed
	}
	s.FaultCategory = domain.Category(e.Err)
	if s.Phase == PhaseAcquiring {
		s.Phase = PhaseResult
		s.Outcome = &domain.VerificationOutcome{Success: false, Message: s.Fault}
	}
	return s, []Effect{DeactivateChannel{}}
}

func acquired(s Session, e Acquired) (Session, []Effect) {
	manual := e.Raw.Channel == domain.ChannelManual
	if !manual && e.Gen != s.Gen {
		return s, nil
	}
	switch {
	case s.Phase == PhaseAcquiring:
	case s.Phase == PhaseIdle && manual:
	default:
		return s, nil
	}

	s.resume = s.Phase
	s.Phase = PhaseClassifying
	s.Attempt = e.Attempt
	s.Source = e.Raw.Channel
	s.Code = domain.ClassifiedCode{}
	s.Notice = ""
	return s, []Effect{ClassifyCode{Attempt: e.Attempt, Raw: e.Raw}}
}

func classified(s Session, e Classified) (Session, []Effect) {
	if s.Phase != PhaseClassifying || e.Attempt != s.Attempt {
		return s, nil
	}
	if e.Err != nil {
		s.Phase = s.resume
		s.Attempt = ""
		s.Source = ""
		s.Notice = NoticeInvalidFormat
		return s, nil
	}
	s.Phase = PhaseVerifying
	s.Code = e.Code
	return s, []Effect{VerifyCode{Attempt: s.Attempt, Code: e.Code}}
}

func verified(s Session, e Verified) (Session, []Effect) {
	if s.Phase != PhaseVerifying || e.Attempt != s.Attempt {
		return s, nil
	}
	if errors.Is(e.Err, domain.ErrNoOperatorCredential) {
		return requireAuth(s)
	}

	out := e.Outcome
	if e.Err != nil {
		out.Success = false
		if out.Message == "" {
			out.Message = verify.MessageGeneric
		}
	}
	s.Phase = PhaseResult
	s.Outcome = &out
	if out.Success && s.Mode.Optical() {
		return release(s)
	}
	return s, nil
}

func retry(s Session) (Session, []Effect) {
	if s.Fault == "" || s.Busy() || s.Mode == "" {
		return s, nil
	}
	s.Fault = ""
	s.FaultCategory = ""
	s.Outcome = nil
	s.Notice = ""
	s.Phase = PhaseAcquiring
	return reactivate(s)
}

func scanAnother(s Session) (Session, []Effect) {
	if s.Phase != PhaseResult {
		return s, nil
	}
	if s.Fault != "" {
		return retry(s)
	}

	resume := s.resume
	s.Attempt = ""
	s.Code = domain.ClassifiedCode{}
	s.Source = ""
	s.Outcome = nil
	s.Notice = ""
	s.Attendance = AttendanceNone
	s.AttendanceMessage = ""

	if s.Mode == "" || resume == PhaseIdle {
		s.Phase = PhaseIdle
		return s, nil
	}
	s.Phase = PhaseAcquiring
	// the still loop stops after a hit, so optical channels always
	// start over; an attached keystroke listener stays as it is
	if s.Mode.Optical() || !s.ChannelActive {
		return reactivate(s)
	}
	return s, nil
}

func suspend(s Session) (Session, []Effect) {
	next := Session{
		Mode:         s.Mode,
		Phase:        PhaseIdle,
		AuthRequired: s.AuthRequired,
		Gen:          s.Gen + 1,
	}
	return next, []Effect{DeactivateChannel{}}
}

func attend(s Session) (Session, []Effect) {
	if s.Phase != PhaseResult || s.Outcome == nil || !s.Outcome.Success {
		return s, nil
	}
	if s.Outcome.Payload == nil || s.Outcome.Payload.RegistrationID == "" {
		return s, nil
	}
	if s.Attendance == AttendanceMarking || s.Attendance == AttendanceRecorded {
		return s, nil
	}
	s.Attendance = AttendanceMarking
	s.AttendanceMessage = ""
	return s, []Effect{MarkAttendance{Attempt: s.Attempt, RegistrationID: s.Outcome.Payload.RegistrationID}}
}

func attendanceMarked(s Session, e AttendanceMarked) (Session, []Effect) {
	if s.Attendance != AttendanceMarking || e.Attempt != s.Attempt {
		return s, nil
	}
	if errors.Is(e.Err, domain.ErrNoOperatorCredential) {
		return requireAuth(s)
	}
	if e.Err != nil {
		s.Attendance = AttendanceFailed
		s.AttendanceMessage = verify.Message(e.Err)
		return s, nil
	}

	s.Attendance = AttendanceRecorded
	out := *s.Outcome
	if out.Payload != nil {
		p := *out.Payload
		p.Attended = true
		if !e.At.IsZero() {
			at := e.At
			p.AttendedAt = &at
		}
		out.Payload = &p
	}
	s.Outcome = &out
	return s, nil
}

// requireAuth ends the session until the operator signs in again.
func requireAuth(s Session) (Session, []Effect) {
	next := Session{Mode: s.Mode, Phase: PhaseIdle, AuthRequired: true, Gen: s.Gen + 1}
	return next, []Effect{DeactivateChannel{}}
}

func release(s Session) (Session, []Effect) {
	s.Gen++
	s.ChannelActive = false
	return s, []Effect{DeactivateChannel{}}
}

func reactivate(s Session) (Session, []Effect) {
	s.Gen++
	s.ChannelActive = false
	return s, []Effect{DeactivateChannel{}, ActivateChannel{Mode: s.Mode, Gen: s.Gen}}
}
