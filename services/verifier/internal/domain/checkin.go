package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	checkin "github.com/diagnosis/luxsuv-checkin/internal/domain"
)

// Inspector is a staff member allowed to check attendees in. The access
// code is stored twice: an argon2id hash for verification and a sha256
// digest so the row can be found without scanning every hash.
type Inspector struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CodeHash   string    `json:"-"`
	CodeDigest string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Registration is either a free registration (six-digit code) or a
// purchased ticket (seven-digit, QR or barcode code).
type Registration struct {
	ID         string
	Free       bool
	Code       string
	Name       string
	Email      string
	TicketType string
	EventName  string
	Quantity   int
	Attended   bool
	AttendedAt *time.Time
}

func (r *Registration) Record() *checkin.AttendeeRecord {
	return &checkin.AttendeeRecord{
		RegistrationID: r.ID,
		Name:           r.Name,
		Email:          r.Email,
		TicketType:     r.TicketType,
		EventName:      r.EventName,
		Quantity:       r.Quantity,
		Attended:       r.Attended,
		AttendedAt:     r.AttendedAt,
	}
}

const (
	MessageInvalidAccessCode    = "Invalid inspector access code."
	MessageFreeRegNotFound      = "Free registration not found."
	MessageTicketNotFound       = "Ticket not found."
	MessageRegistrationNotFound = "Registration not found."
)

var (
	ErrInvalidAccessCode = errors.New(MessageInvalidAccessCode)
	ErrInvalidRequest    = errors.New("invalid request")
)

// NotFoundError is a lookup miss; Message is returned to the terminal.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// CodeDigest is the lookup key for an inspector access code.
func CodeDigest(accessCode string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(accessCode)))
	return hex.EncodeToString(sum[:])
}
