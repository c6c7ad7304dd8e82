package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wrrk/support/internal/domain"
)

// OrganizationRepository encapsulates tenant persistence.
type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	// NextTicketNumber atomically advances and returns the per-tenant
	// ticket sequence.
	NextTicketNumber(ctx context.Context, orgID string) (int64, error)
}

type organizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository instantiates repository.
func NewOrganizationRepository(pool *pgxpool.Pool) OrganizationRepository {
	return &organizationRepository{pool: pool}
}

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	const query = `
        INSERT INTO organizations (name)
        VALUES ($1)
        RETURNING id, ticket_seq, created_at, updated_at`

	return r.pool.QueryRow(ctx, query, org.Name).
		Scan(&org.ID, &org.TicketSeq, &org.CreatedAt, &org.UpdatedAt)
}

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	const query = `
        SELECT id, name, ticket_seq, created_at, updated_at
        FROM organizations WHERE id=$1`

	var org domain.Organization
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.TicketSeq,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) NextTicketNumber(ctx context.Context, orgID string) (int64, error) {
	const query = `
        UPDATE organizations SET ticket_seq = ticket_seq + 1, updated_at=NOW()
        WHERE id=$1
        RETURNING ticket_seq`

	var seq int64
	if err := r.pool.QueryRow(ctx, query, orgID).Scan(&seq); err != nil {
		if err == pgx.ErrNoRows {
			return 0, pgx.ErrNoRows
		}
		return 0, err
	}
	return seq, nil
}
