package domain

import (
	"log/slog"
	"time"
)

type AttendeeRecord struct {
	RegistrationID string     `json:"registrationId"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	TicketType     string     `json:"ticketType,omitempty"`
	EventName      string     `json:"eventName,omitempty"`
	Quantity       int        `json:"quantity,omitempty"`
	Attended       bool       `json:"attended"`
	AttendedAt     *time.Time `json:"attendedAt,omitempty"`
}

// VerificationOutcome is the verdict for one verification attempt.
type VerificationOutcome struct {
	Success bool            `json:"success"`
	Payload *AttendeeRecord `json:"payload,omitempty"`
	Message string          `json:"message"`
}

// OperatorCredential is the inspector's numeric access code for the shift.
type OperatorCredential string

func (c OperatorCredential) IsZero() bool { return c == "" }

// LogValue keeps access codes out of log output.
func (c OperatorCredential) LogValue() slog.Value {
	if c.IsZero() {
		return slog.StringValue("")
	}
	return slog.StringValue("***")
}
