package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/domain"
)

type InspectorRepository interface {
	FindByCodeDigest(ctx context.Context, digest string) (*domain.Inspector, error)
	Create(ctx context.Context, name, codeHash, codeDigest string) (*domain.Inspector, error)
}

type inspectorRepository struct {
	pool *pgxpool.Pool
}

func NewInspectorRepository(pool *pgxpool.Pool) InspectorRepository {
	return &inspectorRepository{pool: pool}
}

const inspectorCols = `id::text, name, code_hash, code_digest, active, created_at`

func (r *inspectorRepository) FindByCodeDigest(ctx context.Context, digest string) (*domain.Inspector, error) {
	const q = `SELECT ` + inspectorCols + ` FROM inspectors WHERE code_digest = $1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var i domain.Inspector
	err := r.pool.QueryRow(ctx, q, digest).Scan(&i.ID, &i.Name, &i.CodeHash, &i.CodeDigest, &i.Active, &i.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *inspectorRepository) Create(ctx context.Context, name, codeHash, codeDigest string) (*domain.Inspector, error) {
	const q = `
		INSERT INTO inspectors (name, code_hash, code_digest, active)
		VALUES ($1, $2, $3, true)
		RETURNING ` + inspectorCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var i domain.Inspector
	err := r.pool.QueryRow(ctx, q, name, codeHash, codeDigest).Scan(&i.ID, &i.Name, &i.CodeHash, &i.CodeDigest, &i.Active, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
