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
	"github.com/wrrk/support/internal/mail"
	"github.com/wrrk/support/internal/repository"
	apperrors "github.com/wrrk/support/pkg/util"
)

// IntakeService runs the AI-first flow for customer-originated messages.
// The email webhook and the chat widget both land here; the only
// difference between them is the channel stamped on the ticket.
type IntakeService struct {
	customers  repository.CustomerRepository
	tickets    repository.TicketRepository
	orgs       repository.OrganizationRepository
	messages   repository.MessageRepository
	triage     *TriageService
	allocator  *AssignmentService
	mailer     mail.Mailer
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// IntakeDependencies bundles collaborators.
type IntakeDependencies struct {
	CustomerRepo repository.CustomerRepository
	TicketRepo   repository.TicketRepository
	OrgRepo      repository.OrganizationRepository
	MessageRepo  repository.MessageRepository
	Triage       *TriageService
	Allocator    *AssignmentService
	Mailer       mail.Mailer
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// InboundMessage is one customer message arriving from outside.
type InboundMessage struct {
	OrganizationID string
	Email          string
	Name           string
	Subject        string
	Body           string
	Channel        domain.TicketChannel
}

// IntakeResult reports what happened to the message: answered by AI, or
// turned into a ticket.
type IntakeResult struct {
	Resolved bool
	Response string
	Ticket   *domain.Ticket
}

// NewIntakeService constructs the service.
func NewIntakeService(deps IntakeDependencies) *IntakeService {
	return &IntakeService{
		customers:  deps.CustomerRepo,
		tickets:    deps.TicketRepo,
		orgs:       deps.OrgRepo,
		messages:   deps.MessageRepo,
		triage:     deps.Triage,
		allocator:  deps.Allocator,
		mailer:     deps.Mailer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// HandleInbound processes one customer message. Triage always runs
// before ticket creation; only an unresolved outcome reaches the
// allocator. Nothing is written until the decision is made, so a
// discarded model result has no side effects.
func (s *IntakeService) HandleInbound(ctx context.Context, msg InboundMessage) (*IntakeResult, error) {
	email := strings.TrimSpace(strings.ToLower(msg.Email))
	body := strings.TrimSpace(msg.Body)
	if email == "" || body == "" {
		return nil, apperrors.NewValidationError("email and body required", nil)
	}

	org, err := s.orgs.GetByID(ctx, msg.OrganizationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("organization", map[string]any{"organization_id": msg.OrganizationID})
		}
		return nil, apperrors.MapError(err)
	}

	customer, err := s.findOrCreateCustomer(ctx, org.ID, email, msg.Name)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	decision := s.triage.TryResolve(ctx, org.ID, body)
	if decision.Resolved {
		if msg.Channel == domain.ChannelEmail {
			s.sendAIReply(ctx, customer, msg.Subject, decision.Response)
		}
		s.publishEvent(ctx, events.Event{
			Type:           events.EventTriageResolved,
			OrganizationID: org.ID,
			Actor:          events.Actor{System: true},
			Payload: events.TriageResolvedPayload{
				CustomerID: customer.ID,
				Channel:    msg.Channel,
				Confidence: decision.Confidence,
			},
		})
		return &IntakeResult{Resolved: true, Response: decision.Response}, nil
	}

	number, err := s.orgs.NextTicketNumber(ctx, org.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = bodyPreview(body, 80)
	}

	ticket := &domain.Ticket{
		OrganizationID: org.ID,
		Number:         number,
		CustomerID:     customer.ID,
		Subject:        subject,
		Status:         domain.TicketStatusOpen,
		Priority:       domain.TicketPriorityMedium,
		Channel:        msg.Channel,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	message := &domain.Message{
		TicketID:   ticket.ID,
		AuthorType: domain.AuthorTypeCustomer,
		AuthorID:   &customer.ID,
		Body:       body,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, apperrors.MapError(err)
	}

	// Assignment is a separate, independently retryable step; a failed
	// allocation leaves a valid unassigned ticket behind.
	if err := s.allocator.AutoAssign(ctx, ticket); err != nil {
		s.logger.Warn("auto-assignment failed; ticket left unassigned",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketCreated,
		OrganizationID: org.ID,
		TicketID:       ticket.ID,
		Actor:          events.Actor{CustomerID: &customer.ID},
		Payload: events.TicketCreatedPayload{
			Number:     ticket.Number,
			CustomerID: customer.ID,
			Channel:    ticket.Channel,
			Priority:   ticket.Priority,
			Subject:    ticket.Subject,
		},
	})
	return &IntakeResult{Ticket: ticket}, nil
}

// findOrCreateCustomer reuses the org's existing record for the email;
// a create racing another intake falls back to the winner's row.
func (s *IntakeService) findOrCreateCustomer(ctx context.Context, orgID, email, name string) (*domain.Customer, error) {
	customer, err := s.customers.GetByEmail(ctx, orgID, email)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	created := &domain.Customer{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(name),
		Email:          email,
	}
	if err := s.customers.Create(ctx, created); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return s.customers.GetByEmail(ctx, orgID, email)
		}
		return nil, err
	}
	return created, nil
}

func (s *IntakeService) sendAIReply(ctx context.Context, customer *domain.Customer, subject, response string) {
	replySubject := strings.TrimSpace(subject)
	if replySubject == "" {
		replySubject = "Your support request"
	} else if !strings.HasPrefix(strings.ToLower(replySubject), "re:") {
		replySubject = "Re: " + replySubject
	}
	if err := s.mailer.SendReply(ctx, customer.Email, replySubject, response); err != nil {
		s.logger.Warn("AI reply email failed",
			zap.String("customer_id", customer.ID),
			zap.Error(err))
	}
}

func bodyPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}

func (s *IntakeService) publishEvent(ctx context.Context, event events.Event) {
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
