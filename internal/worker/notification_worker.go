package worker

import (
	"github.com/wrrk/support/internal/service"
)

// StartNotificationWorker registers real-time fan-out handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
