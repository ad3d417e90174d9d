package worker

import (
	"github.com/spec-kit/ticket-lifecycle/internal/service"
)

// StartEventSubscribers registers lifecycle event handlers. Handlers run
// synchronously inside the publishing request; nothing is started in the background.
func StartEventSubscribers(subscribers *service.EventSubscriberService) {
	if subscribers == nil {
		return
	}
	subscribers.RegisterHandlers()
}
