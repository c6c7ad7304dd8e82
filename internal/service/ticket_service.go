package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/events"
	"github.com/wrrk/support/internal/hierarchy"
	"github.com/wrrk/support/internal/policy"
	"github.com/wrrk/support/internal/repository"
	apperrors "github.com/wrrk/support/pkg/util"
)

// TicketService coordinates ticket workflows with subtree-scoped
// visibility.
type TicketService struct {
	tickets    repository.TicketRepository
	orgs       repository.OrganizationRepository
	customers  repository.CustomerRepository
	audit      repository.AuditLogRepository
	resolver   *hierarchy.Resolver
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	OrgRepo      repository.OrganizationRepository
	CustomerRepo repository.CustomerRepository
	AuditRepo    repository.AuditLogRepository
	Resolver     *hierarchy.Resolver
	Dispatcher   events.Dispatcher
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	CustomerID string
	Subject    string
	Priority   domain.TicketPriority
	Channel    domain.TicketChannel
	AssigneeID *string
}

// TicketListFilter describes listing filters. Every field narrows the
// visibility predicate; none widens it.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Channels   []domain.TicketChannel
	AssigneeID *string
	CustomerID *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketUpdateInput carries mutable ticket fields; nil leaves a field
// untouched.
type TicketUpdateInput struct {
	Subject  *string
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		orgs:       deps.OrgRepo,
		customers:  deps.CustomerRepo,
		audit:      deps.AuditRepo,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
	}
}

// CreateTicket creates a ticket on behalf of an authenticated actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, apperrors.NewValidationError("subject required", nil)
	}

	customer, err := s.customers.GetByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": input.CustomerID})
		}
		return nil, apperrors.MapError(err)
	}
	if customer.OrganizationID != actor.OrganizationID {
		return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": input.CustomerID})
	}

	if input.AssigneeID != nil {
		subtree, err := s.resolver.SubtreeUserIDs(ctx, actor)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !policy.CanAssign(actor.Role, subtree, *input.AssigneeID) {
			if actor.Role == domain.RoleAgent {
				return nil, apperrors.NewForbidden("agents must escalate instead of assigning")
			}
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": *input.AssigneeID})
		}
	}

	number, err := s.orgs.NextTicketNumber(ctx, actor.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket := &domain.Ticket{
		OrganizationID: actor.OrganizationID,
		Number:         number,
		CustomerID:     customer.ID,
		AssigneeID:     input.AssigneeID,
		Subject:        subject,
		Status:         domain.TicketStatusOpen,
		Priority:       input.Priority,
		Channel:        input.Channel,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Channel == "" {
		ticket.Channel = domain.ChannelPortal
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketCreated,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          events.Actor{UserID: &actor.ID},
		Payload: events.TicketCreatedPayload{
			Number:     ticket.Number,
			CustomerID: ticket.CustomerID,
			Channel:    ticket.Channel,
			Priority:   ticket.Priority,
			Subject:    ticket.Subject,
		},
	})
	return ticket, nil
}

// ListTickets returns the tickets visible to the actor. The subtree is
// the base predicate; explicit filters only intersect with it, so an
// agent asking for someone else's assignee gets an empty result, not a
// bypass. Unassigned tickets surface to Owners only, through an explicit
// org-wide branch rather than subtree membership.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	subtree, err := s.resolver.SubtreeUserIDs(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	repoFilter := repository.TicketFilter{
		OrganizationID: actor.OrganizationID,
		CustomerID:     filter.CustomerID,
		Statuses:       filter.Statuses,
		Priorities:     filter.Priorities,
		Channels:       filter.Channels,
		SearchTerm:     filter.SearchTerm,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	}

	if actor.Role == domain.RoleOwner {
		repoFilter.IncludeUnassigned = true
	} else {
		repoFilter.AssigneeIn = subtree.IDs()
	}

	if filter.AssigneeID != nil {
		if actor.Role != domain.RoleOwner && !subtree.Contains(*filter.AssigneeID) {
			return []domain.Ticket{}, nil
		}
		repoFilter.AssigneeID = filter.AssigneeID
		repoFilter.IncludeUnassigned = false
	}

	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// GetTicket fetches a ticket the actor may see; anything outside the
// visible set reads as not found.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.visibleTicket(ctx, actor, ticketID)
}

// UpdateTicket applies subject/status/priority changes. Status moves are
// recorded but not constrained; the conventional OPEN→…→CLOSED order is
// not enforced.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.Actor, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			return nil, apperrors.NewValidationError("subject required", nil)
		}
		ticket.Subject = subject
	}
	if input.Priority != nil {
		ticket.Priority = *input.Priority
	}

	oldStatus := ticket.Status
	if input.Status != nil {
		ticket.Status = *input.Status
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	if input.Status != nil && *input.Status != oldStatus {
		s.recordStatusChange(ctx, actor, ticket, oldStatus)
		s.publishEvent(ctx, events.Event{
			Type:           events.EventTicketStatusChanged,
			OrganizationID: ticket.OrganizationID,
			TicketID:       ticket.ID,
			Actor:          events.Actor{UserID: &actor.ID},
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	return ticket, nil
}

// ListAuditTrail returns audit entries for a visible ticket.
func (s *TicketService) ListAuditTrail(ctx context.Context, actor *domain.Actor, ticketID string, limit, offset int) ([]domain.AuditLog, error) {
	if _, err := s.visibleTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.audit.ListByTicket(ctx, ticketID, limit, offset)
}

func (s *TicketService) visibleTicket(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	subtree, err := s.resolver.SubtreeUserIDs(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !TicketVisible(actor, subtree, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// TicketVisible is the single visibility rule: same organization, and
// either the actor is an Owner or the assignee sits in the actor's
// subtree. A nil assignee is in nobody's subtree, so unassigned tickets
// reach Owners only.
func TicketVisible(actor *domain.Actor, subtree hierarchy.Subtree, ticket *domain.Ticket) bool {
	if ticket.OrganizationID != actor.OrganizationID {
		return false
	}
	if actor.Role == domain.RoleOwner {
		return true
	}
	return ticket.AssigneeID != nil && subtree.Contains(*ticket.AssigneeID)
}

func (s *TicketService) recordStatusChange(ctx context.Context, actor *domain.Actor, ticket *domain.Ticket, oldStatus domain.TicketStatus) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Create(ctx, &domain.AuditLog{
		OrganizationID: ticket.OrganizationID,
		TicketID:       &ticket.ID,
		ActorID:        &actor.ID,
		ChangeType:     domain.ChangeTypeStatus,
		OldValue:       map[string]any{"status": oldStatus},
		NewValue:       map[string]any{"status": ticket.Status},
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
