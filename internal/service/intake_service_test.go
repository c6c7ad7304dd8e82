package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/wrrk/support/internal/config"
	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/events"
	"github.com/wrrk/support/internal/hierarchy"
	"github.com/wrrk/support/internal/observability"
	"github.com/wrrk/support/internal/rotation"
)

type intakeFixture struct {
	users     *fakeUserRepo
	orgs      *fakeOrgRepo
	customers *fakeCustomerRepo
	tickets   *fakeTicketRepo
	messages  *fakeMessageRepo
	mailer    *fakeMailer
	svc       *IntakeService
}

func newIntakeFixture(model *fakeCompleter) *intakeFixture {
	f := &intakeFixture{
		users:     &fakeUserRepo{},
		orgs:      &fakeOrgRepo{},
		customers: &fakeCustomerRepo{},
		tickets:   &fakeTicketRepo{},
		messages:  &fakeMessageRepo{},
		mailer:    &fakeMailer{},
	}
	f.orgs.add("org-1")
	logger := zap.NewNop()
	dispatcher := events.NewInMemoryDispatcher(logger)
	allocator := NewAssignmentService(AssignmentDependencies{
		TicketRepo: f.tickets,
		UserRepo:   f.users,
		AuditRepo:  &fakeAuditRepo{},
		Resolver:   hierarchy.NewResolver(f.users, nil),
		Cursor:     rotation.NewMemoryCursor(),
		Dispatcher: dispatcher,
		Metrics:    observability.NewMetrics(),
		Logger:     logger,
	})
	triage := NewTriageService(model, config.AIConfig{ResolveThreshold: 0.7, TimeoutSeconds: 1}, logger, nil)
	f.svc = NewIntakeService(IntakeDependencies{
		CustomerRepo: f.customers,
		TicketRepo:   f.tickets,
		OrgRepo:      f.orgs,
		MessageRepo:  f.messages,
		Triage:       triage,
		Allocator:    allocator,
		Mailer:       f.mailer,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	return f
}

func emailInbound(body string) InboundMessage {
	return InboundMessage{
		OrganizationID: "org-1",
		Email:          "jo@example.com",
		Name:           "Jo",
		Subject:        "Password trouble",
		Body:           body,
		Channel:        domain.ChannelEmail,
	}
}

func TestInboundResolvedSkipsTicketCreation(t *testing.T) {
	model := &fakeCompleter{out: `{"canResolve": true, "confidence": 0.9, "response": "Use the reset link."}`}
	f := newIntakeFixture(model)

	result, err := f.svc.HandleInbound(context.Background(), emailInbound("how do I reset my password?"))
	if err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	if !result.Resolved || result.Ticket != nil {
		t.Fatalf("expected resolved result without ticket, got %+v", result)
	}
	if len(f.tickets.tickets) != 0 {
		t.Fatalf("no ticket must be written for resolved intake, got %d", len(f.tickets.tickets))
	}
	if len(f.mailer.sent) != 1 {
		t.Fatalf("expected one AI reply email, got %d", len(f.mailer.sent))
	}
	if f.mailer.sent[0].subject != "Re: Password trouble" {
		t.Fatalf("unexpected reply subject %q", f.mailer.sent[0].subject)
	}
}

func TestInboundUnresolvedCreatesAssignedTicket(t *testing.T) {
	model := &fakeCompleter{out: `{"canResolve": false, "confidence": 0.3}`}
	f := newIntakeFixture(model)
	f.users.add("O", "org-1", domain.RoleOwner, nil)
	f.users.add("A1", "org-1", domain.RoleAgent, strptr("O"))

	result, err := f.svc.HandleInbound(context.Background(), emailInbound("my invoice is wrong and I am furious"))
	if err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	if result.Resolved || result.Ticket == nil {
		t.Fatalf("expected ticket result, got %+v", result)
	}
	ticket := result.Ticket
	if ticket.Number != 1 || ticket.Status != domain.TicketStatusOpen || ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("unexpected ticket defaults: %+v", ticket)
	}
	if ticket.AssigneeID == nil || *ticket.AssigneeID != "A1" {
		t.Fatalf("expected rotation assignment to A1, got %v", ticket.AssigneeID)
	}
	if len(f.messages.messages) != 1 || f.messages.messages[0].AuthorType != domain.AuthorTypeCustomer {
		t.Fatalf("expected one customer message, got %+v", f.messages.messages)
	}
}

func TestInboundHumanRequestBypassesModel(t *testing.T) {
	model := &fakeCompleter{out: `{"canResolve": true, "confidence": 0.99, "response": "all good"}`}
	f := newIntakeFixture(model)

	result, err := f.svc.HandleInbound(context.Background(), emailInbound("I need to speak to a human please"))
	if err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	if result.Resolved || result.Ticket == nil {
		t.Fatalf("human request must become a ticket, got %+v", result)
	}
	if model.called {
		t.Fatal("model must not run for an explicit human request")
	}
}

func TestInboundModelFailureStillCreatesTicket(t *testing.T) {
	model := &fakeCompleter{err: errors.New("upstream 500")}
	f := newIntakeFixture(model)

	result, err := f.svc.HandleInbound(context.Background(), emailInbound("please help"))
	if err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	if result.Ticket == nil {
		t.Fatal("model failure must fall back to ticket creation")
	}
}

func TestInboundReusesCustomerByEmail(t *testing.T) {
	model := &fakeCompleter{out: `{"canResolve": false, "confidence": 0.1}`}
	f := newIntakeFixture(model)

	if _, err := f.svc.HandleInbound(context.Background(), emailInbound("first question")); err != nil {
		t.Fatalf("first inbound: %v", err)
	}
	if _, err := f.svc.HandleInbound(context.Background(), emailInbound("second question")); err != nil {
		t.Fatalf("second inbound: %v", err)
	}
	if len(f.customers.customers) != 1 {
		t.Fatalf("expected one customer record, got %d", len(f.customers.customers))
	}
	if len(f.tickets.tickets) != 2 {
		t.Fatalf("expected two tickets, got %d", len(f.tickets.tickets))
	}
}

func TestInboundUnknownOrganization(t *testing.T) {
	f := newIntakeFixture(&fakeCompleter{})
	msg := emailInbound("hello")
	msg.OrganizationID = "org-missing"

	_, err := f.svc.HandleInbound(context.Background(), msg)
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}

func TestWidgetResolvedSendsNoEmail(t *testing.T) {
	model := &fakeCompleter{out: `{"canResolve": true, "confidence": 0.95, "response": "Here is how."}`}
	f := newIntakeFixture(model)

	msg := emailInbound("quick chat question")
	msg.Channel = domain.ChannelChat
	result, err := f.svc.HandleInbound(context.Background(), msg)
	if err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	if !result.Resolved || result.Response == "" {
		t.Fatalf("expected inline resolved response, got %+v", result)
	}
	if len(f.mailer.sent) != 0 {
		t.Fatalf("chat resolution must not email, got %d sends", len(f.mailer.sent))
	}
}

func TestInboundSubjectFallsBackToBodyPreview(t *testing.T) {
	model := &fakeCompleter{out: `{"canResolve": false, "confidence": 0.2}`}
	f := newIntakeFixture(model)

	msg := emailInbound("short body")
	msg.Subject = ""
	result, err := f.svc.HandleInbound(context.Background(), msg)
	if err != nil {
		t.Fatalf("handle inbound: %v", err)
	}
	if result.Ticket.Subject != "short body" {
		t.Fatalf("expected subject from body, got %q", result.Ticket.Subject)
	}
}
