package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/events"
	"github.com/wrrk/support/internal/hierarchy"
	"github.com/wrrk/support/internal/observability"
	"github.com/wrrk/support/internal/policy"
	"github.com/wrrk/support/internal/repository"
	"github.com/wrrk/support/internal/rotation"
	apperrors "github.com/wrrk/support/pkg/util"
)

// AssignmentService handles direct assignment, agent escalation, and
// round-robin auto-assignment.
type AssignmentService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	audit      repository.AuditLogRepository
	resolver   *hierarchy.Resolver
	cursor     rotation.CursorStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	AuditRepo  repository.AuditLogRepository
	Resolver   *hierarchy.Resolver
	Cursor     rotation.CursorStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		audit:      deps.AuditRepo,
		resolver:   deps.Resolver,
		cursor:     deps.Cursor,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// NextAgent selects the next agent in rotation for the organization.
// Returns nil with no error when the roster is empty: an unassigned
// ticket is a valid terminal state awaiting manual assignment, not a
// failure. The agent list is ordered by creation time so consecutive
// calls visibly rotate; the cursor advance is atomic in the store, so
// concurrent calls never observe the same position.
func (s *AssignmentService) NextAgent(ctx context.Context, orgID string) (*domain.User, error) {
	agents, err := s.users.ListAgents(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, nil
	}
	n, err := s.cursor.Next(ctx, orgID)
	if err != nil {
		return nil, err
	}
	// The counter keeps growing as the roster changes; the modulo adapts
	// to the current size, so a shrinking roster never indexes out of
	// bounds.
	idx := int((n - 1) % int64(len(agents)))
	return &agents[idx], nil
}

// AutoAssign picks a rotation agent for a freshly created ticket. When no
// agent exists the ticket simply stays unassigned.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticket *domain.Ticket) error {
	agent, err := s.NextAgent(ctx, ticket.OrganizationID)
	if err != nil {
		return err
	}
	if agent == nil {
		s.logger.Info("no agents in rotation; ticket left unassigned",
			zap.String("ticket_id", ticket.ID),
			zap.String("organization_id", ticket.OrganizationID))
		return nil
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &agent.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return err
	}
	s.recordAssigneeChange(ctx, ticket, nil, oldAssignee)
	if s.metrics != nil {
		s.metrics.RecordAutoAssignment()
	}
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketAssigned,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          events.Actor{System: true},
		Payload: events.TicketAssignedPayload{
			OldAssigneeID: oldAssignee,
			AssigneeID:    ticket.AssigneeID,
			AutoAssigned:  true,
		},
	})
	return nil
}

// Assign sets the ticket assignee on behalf of an Owner or Manager.
// Agents are refused outright; their path is Escalate. A manager naming
// a target outside their subtree gets not-found, matching the policy of
// never confirming the existence of invisible users.
func (s *AssignmentService) Assign(ctx context.Context, actor *domain.Actor, ticketID, assigneeID string) (*domain.Ticket, error) {
	if actor.Role == domain.RoleAgent {
		return nil, apperrors.NewForbidden("agents must escalate instead of assigning")
	}

	subtree, err := s.resolver.SubtreeUserIDs(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if assignee.OrganizationID != actor.OrganizationID {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": assigneeID})
	}
	if !policy.CanAssign(actor.Role, subtree, assigneeID) {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": assigneeID})
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !TicketVisible(actor, subtree, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &assignee.ID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAssigneeChange(ctx, ticket, &actor.ID, oldAssignee)
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketAssigned,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          events.Actor{UserID: &actor.ID},
		Payload: events.TicketAssignedPayload{
			OldAssigneeID: oldAssignee,
			AssigneeID:    ticket.AssigneeID,
		},
	})
	return ticket, nil
}

// Escalate hands the agent's ticket to their immediate manager. An agent
// with no creator has no escalation target; that is surfaced as an
// explicit structural violation, never a silent nil assignee.
func (s *AssignmentService) Escalate(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
	if !policy.CanEscalate(actor.Role) {
		return nil, apperrors.NewForbidden("only agents escalate; assign directly instead")
	}

	subtree, err := s.resolver.SubtreeUserIDs(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !TicketVisible(actor, subtree, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	managerID, err := s.resolver.ManagerOf(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, hierarchy.ErrNoManager) {
			return nil, apperrors.NewStructuralViolation("no manager to escalate to", map[string]any{"user_id": actor.ID})
		}
		return nil, apperrors.MapError(err)
	}

	oldAssignee := ticket.AssigneeID
	ticket.AssigneeID = &managerID
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordAssigneeChange(ctx, ticket, &actor.ID, oldAssignee)
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketEscalated,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          events.Actor{UserID: &actor.ID},
		Payload: events.TicketEscalatedPayload{
			FromAgentID: actor.ID,
			ToManagerID: managerID,
		},
	})
	return ticket, nil
}

func (s *AssignmentService) recordAssigneeChange(ctx context.Context, ticket *domain.Ticket, actorID *string, oldAssignee *string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Create(ctx, &domain.AuditLog{
		OrganizationID: ticket.OrganizationID,
		TicketID:       &ticket.ID,
		ActorID:        actorID,
		ChangeType:     domain.ChangeTypeAssignee,
		OldValue:       map[string]any{"assignee_id": oldAssignee},
		NewValue:       map[string]any{"assignee_id": ticket.AssigneeID},
	})
}

func (s *AssignmentService) publishEvent(ctx context.Context, event events.Event) {
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
