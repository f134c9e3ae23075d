package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"

	checkin "github.com/diagnosis/luxsuv-checkin/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/internal/verify"
	"github.com/diagnosis/luxsuv-checkin/pkg/auth"
	"github.com/diagnosis/luxsuv-checkin/pkg/config"
	"github.com/diagnosis/luxsuv-checkin/pkg/events"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/repository"
)

type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
	Inspector *domain.Inspector
}

type CheckinService interface {
	Login(ctx context.Context, accessCode string) (*LoginResult, error)
	Verify(ctx context.Context, req verify.VerifyRequest) (*checkin.AttendeeRecord, error)
	Attend(ctx context.Context, req verify.AttendRequest) (*checkin.AttendeeRecord, error)
}

type checkinService struct {
	inspectors    repository.InspectorRepository
	registrations repository.RegistrationRepository
	eventBus      events.Publisher
	config        *config.Config
}

func NewCheckinService(
	inspectors repository.InspectorRepository,
	registrations repository.RegistrationRepository,
	eventBus events.Publisher,
	config *config.Config,
) CheckinService {
	return &checkinService{
		inspectors:    inspectors,
		registrations: registrations,
		eventBus:      eventBus,
		config:        config,
	}
}

func (s *checkinService) Login(ctx context.Context, accessCode string) (*LoginResult, error) {
	inspector, err := s.authenticate(ctx, accessCode)
	if err != nil {
		return nil, err
	}

	ttl := s.config.Auth.OperatorSessionTTL
	token, err := auth.NewOperatorToken(inspector.ID, inspector.Name, s.config.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue operator token: %w", err)
	}
	logger.InfoContext(ctx, "Inspector signed in", "inspector_id", inspector.ID)
	return &LoginResult{Token: token, ExpiresIn: ttl, Inspector: inspector}, nil
}

func (s *checkinService) Verify(ctx context.Context, req verify.VerifyRequest) (*checkin.AttendeeRecord, error) {
	if _, err := s.authenticate(ctx, req.OperatorCredential); err != nil {
		return nil, err
	}

	kind, ok := verify.ParseKindTag(req.CodeKind)
	code := strings.TrimSpace(req.Code)
	if !ok || code == "" {
		return nil, fmt.Errorf("%w: code and a known codeKind are required", domain.ErrInvalidRequest)
	}

	if kind == checkin.KindSixDigit {
		reg, err := s.registrations.FindFreeRegistration(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to find free registration: %w", err)
		}
		if reg == nil {
			return nil, &domain.NotFoundError{Message: domain.MessageFreeRegNotFound}
		}
		return reg.Record(), nil
	}

	reg, err := s.registrations.FindTicket(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to find ticket: %w", err)
	}
	if reg == nil {
		return nil, &domain.NotFoundError{Message: domain.MessageTicketNotFound}
	}
	return reg.Record(), nil
}

func (s *checkinService) Attend(ctx context.Context, req verify.AttendRequest) (*checkin.AttendeeRecord, error) {
	inspector, err := s.authenticate(ctx, req.OperatorCredential)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(req.RegistrationID)
	if id == "" {
		return nil, fmt.Errorf("%w: registrationId is required", domain.ErrInvalidRequest)
	}

	reg, err := s.registrations.MarkAttended(ctx, id, inspector.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark attended: %w", err)
	}
	if reg == nil {
		return nil, &domain.NotFoundError{Message: domain.MessageRegistrationNotFound}
	}

	attendedAt := time.Now().UTC()
	if reg.AttendedAt != nil {
		attendedAt = *reg.AttendedAt
	}
	terminalID, _ := ctx.Value(logger.TerminalIDKey).(string)
	if err := s.eventBus.Publish(ctx, events.CheckinAttended, events.CheckinAttendedEvent{
		RegistrationID: reg.ID,
		InspectorID:    inspector.ID,
		TerminalID:     terminalID,
		AttendedAt:     attendedAt,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish attendance event", "error", err, "registration_id", reg.ID)
	}
	return reg.Record(), nil
}

// authenticate resolves an access code to an active inspector.
func (s *checkinService) authenticate(ctx context.Context, accessCode string) (*domain.Inspector, error) {
	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return nil, domain.ErrInvalidAccessCode
	}
	inspector, err := s.inspectors.FindByCodeDigest(ctx, domain.CodeDigest(accessCode))
	if err != nil {
		return nil, fmt.Errorf("failed to find inspector: %w", err)
	}
	if inspector == nil || !inspector.Active {
		return nil, domain.ErrInvalidAccessCode
	}
	match, err := argon2id.ComparePasswordAndHash(accessCode, inspector.CodeHash)
	if err != nil {
		return nil, fmt.Errorf("failed to check access code: %w", err)
	}
	if !match {
		return nil, domain.ErrInvalidAccessCode
	}
	return inspector, nil
}
