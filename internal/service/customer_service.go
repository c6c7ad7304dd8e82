package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/repository"
	apperrors "github.com/wrrk/support/pkg/util"
)

// CustomerService manages the org-scoped customer directory.
type CustomerService struct {
	customers repository.CustomerRepository
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository) *CustomerService {
	return &CustomerService{customers: customers}
}

// Create adds a customer. A duplicate email within the organization is a
// distinguishable conflict, not a generic failure.
func (s *CustomerService) Create(ctx context.Context, actor *domain.Actor, name, email string) (*domain.Customer, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperrors.NewValidationError("email required", nil)
	}

	customer := &domain.Customer{
		OrganizationID: actor.OrganizationID,
		Name:           strings.TrimSpace(name),
		Email:          email,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewConflict("customer email already exists", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return customer, nil
}

// Get fetches a customer within the actor's organization.
func (s *CustomerService) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if customer.OrganizationID != actor.OrganizationID {
		return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": id})
	}
	return customer, nil
}

// List returns the organization's customers.
func (s *CustomerService) List(ctx context.Context, actor *domain.Actor, limit, offset int) ([]domain.Customer, error) {
	return s.customers.ListByOrganization(ctx, actor.OrganizationID, limit, offset)
}
