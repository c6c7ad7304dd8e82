package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/wrrk/support/internal/events"
)

// NotificationService fans domain events out to real-time subscribers.
// Delivery is fire-and-forget; a failed emission never fails the
// mutation that produced the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   events.Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier events.Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to the ticket-visible events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketAssigned,
		events.EventTicketEscalated,
		events.EventTicketStatusChanged,
		events.EventTicketMessageAdded,
	} {
		n.dispatcher.Subscribe(eventType, n.handleTicketEvent)
	}
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	if event.TicketID == "" {
		return nil
	}
	n.logger.Debug("emitting ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))
	n.notifier.EmitToTicket(ctx, event.TicketID, string(event.Type), event.Payload)
	return nil
}
