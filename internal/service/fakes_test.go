package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/repository"
	apperrors "github.com/wrrk/support/pkg/util"
)

// In-memory repository fakes shared by the service tests.

type fakeUserRepo struct {
	seq   int
	users []*domain.User
}

func (f *fakeUserRepo) add(id, orgID string, role domain.Role, createdBy *string) *domain.User {
	user := &domain.User{
		ID:             id,
		OrganizationID: orgID,
		Name:           id,
		Email:          id + "@example.com",
		Role:           role,
		CreatedByID:    createdBy,
		CreatedAt:      time.Now(),
	}
	f.users = append(f.users, user)
	return user
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.seq++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", f.seq)
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users = append(f.users, user)
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	for i, existing := range f.users {
		if existing.ID == user.ID && existing.OrganizationID == user.OrganizationID {
			f.users[i] = user
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ListByOrganization(_ context.Context, orgID string) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.users {
		if user.OrganizationID == orgID {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) ListByCreators(_ context.Context, orgID string, creatorIDs []string) ([]domain.User, error) {
	creators := make(map[string]struct{}, len(creatorIDs))
	for _, id := range creatorIDs {
		creators[id] = struct{}{}
	}
	var result []domain.User
	for _, user := range f.users {
		if user.OrganizationID != orgID || user.CreatedByID == nil {
			continue
		}
		if _, ok := creators[*user.CreatedByID]; ok {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) ListAgents(_ context.Context, orgID string) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.users {
		if user.OrganizationID == orgID && user.Role == domain.RoleAgent {
			result = append(result, *user)
		}
	}
	return result, nil
}

type fakeOrgRepo struct {
	seq  int
	orgs []*domain.Organization
}

func (f *fakeOrgRepo) add(id string) *domain.Organization {
	org := &domain.Organization{ID: id, Name: id}
	f.orgs = append(f.orgs, org)
	return org
}

func (f *fakeOrgRepo) Create(_ context.Context, org *domain.Organization) error {
	f.seq++
	org.ID = fmt.Sprintf("org-%d", f.seq)
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	f.orgs = append(f.orgs, org)
	return nil
}

func (f *fakeOrgRepo) GetByID(_ context.Context, id string) (*domain.Organization, error) {
	for _, org := range f.orgs {
		if org.ID == id {
			return org, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOrgRepo) NextTicketNumber(_ context.Context, orgID string) (int64, error) {
	for _, org := range f.orgs {
		if org.ID == orgID {
			org.TicketSeq++
			return org.TicketSeq, nil
		}
	}
	return 0, pgx.ErrNoRows
}

type fakeTicketRepo struct {
	seq        int
	tickets    []*domain.Ticket
	lastFilter repository.TicketFilter
}

func (f *fakeTicketRepo) add(id, orgID, customerID string, assigneeID *string) *domain.Ticket {
	f.seq++
	ticket := &domain.Ticket{
		ID:             id,
		OrganizationID: orgID,
		Number:         int64(f.seq),
		CustomerID:     customerID,
		AssigneeID:     assigneeID,
		Subject:        "subject " + id,
		Status:         domain.TicketStatusOpen,
		Priority:       domain.TicketPriorityMedium,
		Channel:        domain.ChannelPortal,
	}
	f.tickets = append(f.tickets, ticket)
	return ticket
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", f.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	f.tickets = append(f.tickets, ticket)
	return nil
}

func (f *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	for i, existing := range f.tickets {
		if existing.ID == ticket.ID && existing.OrganizationID == ticket.OrganizationID {
			f.tickets[i] = ticket
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	for _, ticket := range f.tickets {
		if ticket.ID == id {
			return ticket, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if filter.OrganizationID == "" {
		return nil, errors.New("ticket filter requires organization scope")
	}
	f.lastFilter = filter

	result := []domain.Ticket{}
	for _, ticket := range f.tickets {
		if ticket.OrganizationID != filter.OrganizationID {
			continue
		}
		switch {
		case len(filter.AssigneeIn) > 0 && filter.IncludeUnassigned:
			if ticket.AssigneeID != nil && !containsID(filter.AssigneeIn, *ticket.AssigneeID) {
				continue
			}
		case len(filter.AssigneeIn) > 0:
			if ticket.AssigneeID == nil || !containsID(filter.AssigneeIn, *ticket.AssigneeID) {
				continue
			}
		}
		if filter.AssigneeID != nil {
			if ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID {
				continue
			}
		}
		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

type fakeCustomerRepo struct {
	seq       int
	customers []*domain.Customer
}

func (f *fakeCustomerRepo) add(id, orgID, email string) *domain.Customer {
	customer := &domain.Customer{ID: id, OrganizationID: orgID, Name: id, Email: email}
	f.customers = append(f.customers, customer)
	return customer
}

func (f *fakeCustomerRepo) Create(_ context.Context, customer *domain.Customer) error {
	for _, existing := range f.customers {
		if existing.OrganizationID == customer.OrganizationID && existing.Email == customer.Email {
			return repository.ErrDuplicateEmail
		}
	}
	f.seq++
	customer.ID = fmt.Sprintf("customer-%d", f.seq)
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = customer.CreatedAt
	f.customers = append(f.customers, customer)
	return nil
}

func (f *fakeCustomerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	for _, customer := range f.customers {
		if customer.ID == id {
			return customer, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCustomerRepo) GetByEmail(_ context.Context, orgID, email string) (*domain.Customer, error) {
	for _, customer := range f.customers {
		if customer.OrganizationID == orgID && customer.Email == email {
			return customer, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCustomerRepo) ListByOrganization(_ context.Context, orgID string, _, _ int) ([]domain.Customer, error) {
	var result []domain.Customer
	for _, customer := range f.customers {
		if customer.OrganizationID == orgID {
			result = append(result, *customer)
		}
	}
	return result, nil
}

type fakeMessageRepo struct {
	seq      int
	messages []*domain.Message
}

func (f *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	f.seq++
	msg.ID = fmt.Sprintf("message-%d", f.seq)
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	var result []domain.Message
	for _, msg := range f.messages {
		if msg.TicketID == ticketID {
			result = append(result, *msg)
		}
	}
	return result, nil
}

type fakeAuditRepo struct {
	entries []*domain.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	entry.ID = fmt.Sprintf("audit-%d", len(f.entries)+1)
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) ListByTicket(_ context.Context, ticketID string, _, _ int) ([]domain.AuditLog, error) {
	var result []domain.AuditLog
	for _, entry := range f.entries {
		if entry.TicketID != nil && *entry.TicketID == ticketID {
			result = append(result, *entry)
		}
	}
	return result, nil
}

type fakeInvitationRepo struct {
	seq         int
	invitations []*domain.Invitation
}

func (f *fakeInvitationRepo) Create(_ context.Context, inv *domain.Invitation) error {
	f.seq++
	inv.ID = fmt.Sprintf("invitation-%d", f.seq)
	inv.CreatedAt = time.Now()
	f.invitations = append(f.invitations, inv)
	return nil
}

func (f *fakeInvitationRepo) GetByToken(_ context.Context, token string) (*domain.Invitation, error) {
	for _, inv := range f.invitations {
		if inv.Token == token {
			return inv, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeInvitationRepo) MarkAccepted(_ context.Context, id string) error {
	for _, inv := range f.invitations {
		if inv.ID == id {
			if inv.AcceptedAt != nil {
				return pgx.ErrNoRows
			}
			now := time.Now()
			inv.AcceptedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

type fakeCompleter struct {
	out    string
	err    error
	called bool
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.called = true
	return f.out, f.err
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendReply(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func domainCode(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	return de.Code
}

func strptr(s string) *string { return &s }
