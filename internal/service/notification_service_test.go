package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/wrrk/support/internal/events"
)

type fakeNotifier struct {
	emitted []string
}

func (f *fakeNotifier) EmitToTicket(_ context.Context, ticketID, eventName string, _ any) {
	f.emitted = append(f.emitted, ticketID+"/"+eventName)
}

func TestNotificationFansOutTicketEvents(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifier := &fakeNotifier{}
	svc := NewNotificationService(dispatcher, notifier, zap.NewNop())
	svc.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: "t1",
		Payload:  map[string]any{"assignee_id": "A1"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(notifier.emitted) != 1 || notifier.emitted[0] != "t1/ticket_assigned" {
		t.Fatalf("unexpected emissions: %v", notifier.emitted)
	}
}

func TestNotificationSkipsEventsWithoutTicket(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifier := &fakeNotifier{}
	NewNotificationService(dispatcher, notifier, zap.NewNop()).RegisterHandlers()

	if err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(notifier.emitted) != 0 {
		t.Fatalf("expected no emissions, got %v", notifier.emitted)
	}
}
