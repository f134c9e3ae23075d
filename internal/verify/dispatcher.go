// Package verify sends classified codes to the verification service and
// maps its answers to verification outcomes.
package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/diagnosis/luxsuv-checkin/internal/domain"
)

// Classification tags expected by the verification service.
const (
	TagSixDigit   = "SIX_DIGIT_CODE"
	TagSevenDigit = "SEVEN_DIGIT_CODE"
	TagQR         = "QR_CODE"
	TagBarcode    = "BARCODE"
)

const (
	// MessageNotFound is the service's answer for an unknown free
	// registration; it is shown to operators as MessageNotRegistered.
	MessageNotFound      = "Free registration not found."
	MessageNotRegistered = "User not registered."
	MessageGeneric       = "Verification failed. Please try again."
)

const (
	PathVerify = "/v1/checkin/verify"
	PathAttend = "/v1/checkin/attend"
)

// KindTag maps a code kind to its service classification tag.
func KindTag(k domain.CodeKind) (string, error) {
	switch k {
	case domain.KindSixDigit:
		return TagSixDigit, nil
	case domain.KindSevenDigit:
		return TagSevenDigit, nil
	case domain.KindOpticalPayload:
		return TagQR, nil
	case domain.KindBarcodePayload:
		return TagBarcode, nil
	default:
		return "", fmt.Errorf("no classification tag for %s code", k)
	}
}

// ParseKindTag is the inverse of KindTag.
func ParseKindTag(tag string) (domain.CodeKind, bool) {
	switch tag {
	case TagSixDigit:
		return domain.KindSixDigit, true
	case TagSevenDigit:
		return domain.KindSevenDigit, true
	case TagQR:
		return domain.KindOpticalPayload, true
	case TagBarcode:
		return domain.KindBarcodePayload, true
	default:
		return domain.KindUnknown, false
	}
}

type VerifyRequest struct {
	Code               string `json:"code"`
	CodeKind           string `json:"codeKind"`
	OperatorCredential string `json:"operatorCredential"`
}

type VerifyResponse struct {
	Success bool                   `json:"success"`
	Data    *domain.AttendeeRecord `json:"data,omitempty"`
	Message string                 `json:"message,omitempty"`
}

type AttendRequest struct {
	RegistrationID     string `json:"registrationId"`
	OperatorCredential string `json:"operatorCredential"`
}

// DispatchError is a failed exchange with the verification service.
// Message is the server's message when it sent one.
type DispatchError struct {
	Status  int
	Message string
	Err     error
}

func (e *DispatchError) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("verification service %d: %s", e.Status, e.Message)
	case e.Message != "":
		return "verification service: " + e.Message
	case e.Err != nil:
		return "verification dispatch: " + e.Err.Error()
	default:
		return fmt.Sprintf("verification service %d", e.Status)
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) Category() string { return domain.CategoryDispatch }

// Message returns the operator-facing text for err: the server message,
// else the transport error text, else a generic fallback.
func Message(err error) string {
	var derr *DispatchError
	if errors.As(err, &derr) {
		if derr.Message != "" {
			return rewrite(derr.Message)
		}
		if derr.Err != nil {
			return derr.Err.Error()
		}
		return MessageGeneric
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return MessageGeneric
}

func rewrite(msg string) string {
	if msg == MessageNotFound {
		return MessageNotRegistered
	}
	return msg
}

// Dispatcher turns classified codes into verification requests.
type Dispatcher struct {
	client *Client
}

func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// Verify asks the service about code. A missing credential skips the
// request and returns domain.ErrNoOperatorCredential. Any other failure
// returns a failed outcome carrying the operator-facing message along
// with a *DispatchError.
func (d *Dispatcher) Verify(ctx context.Context, code domain.ClassifiedCode, cred domain.OperatorCredential) (domain.VerificationOutcome, error) {
	if cred.IsZero() {
		return domain.VerificationOutcome{}, domain.ErrNoOperatorCredential
	}
	tag, err := KindTag(code.Kind)
	if err != nil {
		derr := &DispatchError{Err: err}
		return failed(derr), derr
	}

	var resp VerifyResponse
	status, err := d.client.Post(ctx, PathVerify, VerifyRequest{
		Code:               code.Code,
		CodeKind:           tag,
		OperatorCredential: string(cred),
	}, nil, &resp)
	if err != nil {
		derr := &DispatchError{Err: err}
		return failed(derr), derr
	}
	if status < 200 || status >= 300 {
		derr := &DispatchError{Status: status, Message: resp.Message}
		if resp.Message == "" {
			derr.Err = fmt.Errorf("verification service returned %d %s", status, http.StatusText(status))
		}
		return failed(derr), derr
	}
	if !resp.Success {
		derr := &DispatchError{Status: status, Message: resp.Message}
		return failed(derr), derr
	}

	return domain.VerificationOutcome{
		Success: true,
		Payload: resp.Data,
		Message: resp.Message,
	}, nil
}

// MarkAttended records the attendee of registrationID as checked in.
func (d *Dispatcher) MarkAttended(ctx context.Context, registrationID string, cred domain.OperatorCredential) error {
	if cred.IsZero() {
		return domain.ErrNoOperatorCredential
	}
	if registrationID == "" {
		return errors.New("registration id is required")
	}

	var resp VerifyResponse
	status, err := d.client.Post(ctx, PathAttend, AttendRequest{
		RegistrationID:     registrationID,
		OperatorCredential: string(cred),
	}, map[string]string{"Idempotency-Key": "attend-" + registrationID}, &resp)
	if err != nil {
		return &DispatchError{Err: err}
	}
	if status < 200 || status >= 300 || !resp.Success {
		derr := &DispatchError{Status: status, Message: resp.Message}
		if resp.Message == "" {
			derr.Err = fmt.Errorf("verification service returned %d %s", status, http.StatusText(status))
		}
		return derr
	}
	return nil
}

func failed(err error) domain.VerificationOutcome {
	return domain.VerificationOutcome{Success: false, Message: Message(err)}
}

const PathLogin = "/v1/inspectors/login"

type LoginRequest struct {
	AccessCode string `json:"accessCode"`
}

type LoginResponse struct {
	Token     string `json:"token,omitempty"`
	ExpiresIn int64  `json:"expiresIn,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Login exchanges an inspector access code for a session token.
func (d *Dispatcher) Login(ctx context.Context, accessCode string) (string, error) {
	if accessCode == "" {
		return "", domain.ErrNoOperatorCredential
	}
	var resp LoginResponse
	status, err := d.client.Post(ctx, PathLogin, LoginRequest{AccessCode: accessCode}, nil, &resp)
	if err != nil {
		return "", &DispatchError{Err: err}
	}
	if status < 200 || status >= 300 || resp.Token == "" {
		derr := &DispatchError{Status: status, Message: resp.Message}
		if resp.Message == "" {
			derr.Err = fmt.Errorf("verification service returned %d %s", status, http.StatusText(status))
		}
		return "", derr
	}
	return resp.Token, nil
}
