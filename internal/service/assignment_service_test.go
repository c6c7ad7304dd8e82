package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/events"
	"github.com/wrrk/support/internal/hierarchy"
	"github.com/wrrk/support/internal/observability"
	"github.com/wrrk/support/internal/rotation"
)

func newAssignmentFixture(users *fakeUserRepo, tickets *fakeTicketRepo, audit *fakeAuditRepo) *AssignmentService {
	return NewAssignmentService(AssignmentDependencies{
		TicketRepo: tickets,
		UserRepo:   users,
		AuditRepo:  audit,
		Resolver:   hierarchy.NewResolver(users, nil),
		Cursor:     rotation.NewMemoryCursor(),
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Metrics:    observability.NewMetrics(),
		Logger:     zap.NewNop(),
	})
}

func TestNextAgentRotatesFairly(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("A1", "org-1", domain.RoleAgent, strptr("O"))
	users.add("A2", "org-1", domain.RoleAgent, strptr("O"))
	users.add("A3", "org-1", domain.RoleAgent, strptr("O"))
	svc := newAssignmentFixture(users, &fakeTicketRepo{}, &fakeAuditRepo{})

	want := []string{"A1", "A2", "A3", "A1", "A2", "A3"}
	for i, expected := range want {
		agent, err := svc.NextAgent(context.Background(), "org-1")
		if err != nil {
			t.Fatalf("next agent %d: %v", i, err)
		}
		if agent == nil || agent.ID != expected {
			t.Fatalf("call %d: expected %s, got %+v", i, expected, agent)
		}
	}
}

func TestNextAgentEmptyRoster(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	svc := newAssignmentFixture(users, &fakeTicketRepo{}, &fakeAuditRepo{})

	agent, err := svc.NextAgent(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("next agent: %v", err)
	}
	if agent != nil {
		t.Fatalf("expected nil agent for empty roster, got %+v", agent)
	}
}

func TestAutoAssignLeavesTicketUnassignedWithoutAgents(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	tickets := &fakeTicketRepo{}
	ticket := tickets.add("t1", "org-1", "c1", nil)
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	if err := svc.AutoAssign(context.Background(), ticket); err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if ticket.AssigneeID != nil {
		t.Fatalf("expected unassigned ticket, got assignee %v", *ticket.AssigneeID)
	}
}

func TestAutoAssignRecordsAuditWithoutActor(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("A1", "org-1", domain.RoleAgent, strptr("O"))
	tickets := &fakeTicketRepo{}
	ticket := tickets.add("t1", "org-1", "c1", nil)
	audit := &fakeAuditRepo{}
	svc := newAssignmentFixture(users, tickets, audit)

	if err := svc.AutoAssign(context.Background(), ticket); err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if ticket.AssigneeID == nil || *ticket.AssigneeID != "A1" {
		t.Fatalf("expected A1 assigned, got %v", ticket.AssigneeID)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.ChangeType != domain.ChangeTypeAssignee {
		t.Fatalf("expected assignee change, got %s", entry.ChangeType)
	}
	if entry.ActorID != nil {
		t.Fatalf("system assignment must carry no actor, got %v", *entry.ActorID)
	}
}

func TestAssignByAgentForbidden(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("A1", "org-1", domain.RoleAgent, strptr("O"))
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", strptr("A1"))
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	actor := &domain.Actor{ID: "A1", Role: domain.RoleAgent, OrganizationID: "org-1"}
	_, err := svc.Assign(context.Background(), actor, "t1", "A1")
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
}

func TestAssignOutsideSubtreeReadsNotFound(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("M", "org-1", domain.RoleManager, strptr("O"))
	users.add("M2", "org-1", domain.RoleManager, strptr("O"))
	users.add("A3", "org-1", domain.RoleAgent, strptr("M2"))
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", strptr("M"))
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	actor := &domain.Actor{ID: "M", Role: domain.RoleManager, OrganizationID: "org-1"}
	_, err := svc.Assign(context.Background(), actor, "t1", "A3")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for out-of-subtree assignee, got %s", code)
	}
}

func TestAssignByOwnerUpdatesTicket(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("A1", "org-1", domain.RoleAgent, strptr("O"))
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", nil)
	audit := &fakeAuditRepo{}
	svc := newAssignmentFixture(users, tickets, audit)

	actor := &domain.Actor{ID: "O", Role: domain.RoleOwner, OrganizationID: "org-1"}
	ticket, err := svc.Assign(context.Background(), actor, "t1", "A1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if ticket.AssigneeID == nil || *ticket.AssigneeID != "A1" {
		t.Fatalf("expected assignee A1, got %v", ticket.AssigneeID)
	}
	if len(audit.entries) != 1 || audit.entries[0].ActorID == nil || *audit.entries[0].ActorID != "O" {
		t.Fatalf("expected audit entry by O, got %+v", audit.entries)
	}
}

func TestAssignCrossOrganizationAssigneeHidden(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("X", "org-2", domain.RoleAgent, nil)
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", nil)
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	actor := &domain.Actor{ID: "O", Role: domain.RoleOwner, OrganizationID: "org-1"}
	_, err := svc.Assign(context.Background(), actor, "t1", "X")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for cross-org assignee, got %s", code)
	}
}

func TestEscalateHandsTicketToManager(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("M", "org-1", domain.RoleManager, strptr("O"))
	users.add("A1", "org-1", domain.RoleAgent, strptr("M"))
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", strptr("A1"))
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	actor := &domain.Actor{ID: "A1", Role: domain.RoleAgent, OrganizationID: "org-1"}
	ticket, err := svc.Escalate(context.Background(), actor, "t1")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if ticket.AssigneeID == nil || *ticket.AssigneeID != "M" {
		t.Fatalf("expected assignee M after escalation, got %v", ticket.AssigneeID)
	}
}

func TestEscalateWithoutManagerIsStructuralViolation(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("A1", "org-1", domain.RoleAgent, nil)
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", strptr("A1"))
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	actor := &domain.Actor{ID: "A1", Role: domain.RoleAgent, OrganizationID: "org-1"}
	_, err := svc.Escalate(context.Background(), actor, "t1")
	if code := domainCode(t, err); code != "STRUCTURAL_VIOLATION" {
		t.Fatalf("expected STRUCTURAL_VIOLATION, got %s", code)
	}
}

func TestEscalateByManagerForbidden(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("M", "org-1", domain.RoleManager, strptr("O"))
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", strptr("M"))
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	actor := &domain.Actor{ID: "M", Role: domain.RoleManager, OrganizationID: "org-1"}
	_, err := svc.Escalate(context.Background(), actor, "t1")
	if code := domainCode(t, err); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %s", code)
	}
}

func TestEscalateInvisibleTicketNotFound(t *testing.T) {
	users := &fakeUserRepo{}
	users.add("O", "org-1", domain.RoleOwner, nil)
	users.add("M", "org-1", domain.RoleManager, strptr("O"))
	users.add("A1", "org-1", domain.RoleAgent, strptr("M"))
	users.add("A2", "org-1", domain.RoleAgent, strptr("M"))
	tickets := &fakeTicketRepo{}
	tickets.add("t1", "org-1", "c1", strptr("A2"))
	svc := newAssignmentFixture(users, tickets, &fakeAuditRepo{})

	actor := &domain.Actor{ID: "A1", Role: domain.RoleAgent, OrganizationID: "org-1"}
	_, err := svc.Escalate(context.Background(), actor, "t1")
	if code := domainCode(t, err); code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND for ticket outside visibility, got %s", code)
	}
}
