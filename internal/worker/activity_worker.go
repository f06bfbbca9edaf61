package worker

import (
	"github.com/spec-kit/presence-service/internal/service"
)

// StartActivityWorker registers presence event handlers.
func StartActivityWorker(activityService *service.ActivityService) {
	if activityService == nil {
		return
	}
	activityService.RegisterHandlers()
}
