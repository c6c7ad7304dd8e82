package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/events"
	"github.com/wrrk/support/internal/hierarchy"
	"github.com/wrrk/support/internal/mail"
	"github.com/wrrk/support/internal/repository"
	apperrors "github.com/wrrk/support/pkg/util"
)

// MessageService manages ticket threads.
type MessageService struct {
	tickets    repository.TicketRepository
	messages   repository.MessageRepository
	customers  repository.CustomerRepository
	resolver   *hierarchy.Resolver
	mailer     mail.Mailer
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// MessageDependencies bundles collaborators.
type MessageDependencies struct {
	TicketRepo   repository.TicketRepository
	MessageRepo  repository.MessageRepository
	CustomerRepo repository.CustomerRepository
	Resolver     *hierarchy.Resolver
	Mailer       mail.Mailer
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	return &MessageService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		customers:  deps.CustomerRepo,
		resolver:   deps.Resolver,
		mailer:     deps.Mailer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// AddAgentMessage appends a staff message to a visible ticket. Public
// replies on an email-channel ticket also go out by email; a mail
// failure is logged and never fails the message itself.
func (s *MessageService) AddAgentMessage(ctx context.Context, actor *domain.Actor, ticketID, body string, internal bool) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}

	ticket, err := s.visibleTicket(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		TicketID:   ticket.ID,
		AuthorType: domain.AuthorTypeAgent,
		AuthorID:   &actor.ID,
		Body:       body,
		Internal:   internal,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	if ticket.Channel == domain.ChannelEmail && !internal {
		s.sendReplyEmail(ctx, ticket, body)
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketMessageAdded,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          events.Actor{UserID: &actor.ID},
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorType:  msg.AuthorType,
			AuthorID:    msg.AuthorID,
			Internal:    msg.Internal,
			BodyPreview: bodyPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// AddCustomerMessage appends a follow-up from the customer, used by the
// widget and email ingestion for existing tickets.
func (s *MessageService) AddCustomerMessage(ctx context.Context, ticketID, customerID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("body required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if ticket.CustomerID != customerID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}

	msg := &domain.Message{
		TicketID:   ticket.ID,
		AuthorType: domain.AuthorTypeCustomer,
		AuthorID:   &customerID,
		Body:       body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketMessageAdded,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          events.Actor{CustomerID: &customerID},
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorType:  msg.AuthorType,
			AuthorID:    msg.AuthorID,
			BodyPreview: bodyPreview(msg.Body, 120),
		},
	})
	return msg, nil
}

// ListMessages returns the thread for a visible ticket.
func (s *MessageService) ListMessages(ctx context.Context, actor *domain.Actor, ticketID string) ([]domain.Message, error) {
	if _, err := s.visibleTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.messages.ListByTicket(ctx, ticketID)
}

func (s *MessageService) visibleTicket(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
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

func (s *MessageService) sendReplyEmail(ctx context.Context, ticket *domain.Ticket, body string) {
	customer, err := s.customers.GetByID(ctx, ticket.CustomerID)
	if err != nil {
		s.logger.Warn("reply email skipped; customer lookup failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return
	}
	subject := "Re: " + ticket.Subject + " [" + ticket.Reference() + "]"
	if err := s.mailer.SendReply(ctx, customer.Email, subject, body); err != nil {
		s.logger.Warn("reply email failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("customer_id", customer.ID),
			zap.Error(err))
	}
}

func (s *MessageService) publishEvent(ctx context.Context, event events.Event) {
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
