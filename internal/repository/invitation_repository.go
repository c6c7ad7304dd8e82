package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wrrk/support/internal/domain"
)

// InvitationRepository persists pending organization invitations.
type InvitationRepository interface {
	Create(ctx context.Context, inv *domain.Invitation) error
	GetByToken(ctx context.Context, token string) (*domain.Invitation, error)
	MarkAccepted(ctx context.Context, id string) error
}

type invitationRepository struct {
	pool *pgxpool.Pool
}

// NewInvitationRepository instantiates repository.
func NewInvitationRepository(pool *pgxpool.Pool) InvitationRepository {
	return &invitationRepository{pool: pool}
}

func (r *invitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	const query = `
        INSERT INTO invitations (organization_id, inviter_id, email, role, token, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		inv.OrganizationID,
		inv.InviterID,
		inv.Email,
		inv.Role,
		inv.Token,
		inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt)
}

func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	const query = `
        SELECT id, organization_id, inviter_id, email, role, token, expires_at, accepted_at, created_at
        FROM invitations WHERE token=$1`

	var inv domain.Invitation
	if err := r.pool.QueryRow(ctx, query, token).Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.InviterID,
		&inv.Email,
		&inv.Role,
		&inv.Token,
		&inv.ExpiresAt,
		&inv.AcceptedAt,
		&inv.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepository) MarkAccepted(ctx context.Context, id string) error {
	const query = `UPDATE invitations SET accepted_at=NOW() WHERE id=$1 AND accepted_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
