package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/domain"
)

type RegistrationRepository interface {
	FindFreeRegistration(ctx context.Context, code string) (*domain.Registration, error)
	FindTicket(ctx context.Context, code string) (*domain.Registration, error)
	// MarkAttended flags the registration or ticket with id as attended
	// and returns it. It returns nil when no such row exists.
	MarkAttended(ctx context.Context, id, inspectorID string) (*domain.Registration, error)
}

type registrationRepository struct {
	pool *pgxpool.Pool
}

func NewRegistrationRepository(pool *pgxpool.Pool) RegistrationRepository {
	return &registrationRepository{pool: pool}
}

const freeCols = `id::text, code, name, email, '' AS ticket_type, event_name, 1 AS quantity, attended, attended_at`

const ticketCols = `id::text, code, name, email, ticket_type, event_name, quantity, attended, attended_at`

func (r *registrationRepository) FindFreeRegistration(ctx context.Context, code string) (*domain.Registration, error) {
	const q = `SELECT ` + freeCols + ` FROM free_registrations WHERE code = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	reg, err := scanRegistration(r.pool.QueryRow(ctx, q, code))
	if reg != nil {
		reg.Free = true
	}
	return reg, err
}

func (r *registrationRepository) FindTicket(ctx context.Context, code string) (*domain.Registration, error) {
	const q = `SELECT ` + ticketCols + ` FROM tickets WHERE code = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanRegistration(r.pool.QueryRow(ctx, q, code))
}

func (r *registrationRepository) MarkAttended(ctx context.Context, id, inspectorID string) (*domain.Registration, error) {
	const freeQ = `
		UPDATE free_registrations
		SET attended = true,
			attended_at = COALESCE(attended_at, now()),
			attended_by = COALESCE(attended_by, $2::uuid)
		WHERE id::text = $1
		RETURNING ` + freeCols
	const ticketQ = `
		UPDATE tickets
		SET attended = true,
			attended_at = COALESCE(attended_at, now()),
			attended_by = COALESCE(attended_by, $2::uuid)
		WHERE id::text = $1
		RETURNING ` + ticketCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	reg, err := scanRegistration(tx.QueryRow(ctx, freeQ, id, inspectorID))
	if err != nil {
		return nil, err
	}
	if reg != nil {
		reg.Free = true
	} else {
		reg, err = scanRegistration(tx.QueryRow(ctx, ticketQ, id, inspectorID))
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var reg domain.Registration
	err := row.Scan(&reg.ID, &reg.Code, &reg.Name, &reg.Email, &reg.TicketType, &reg.EventName, &reg.Quantity, &reg.Attended, &reg.AttendedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
