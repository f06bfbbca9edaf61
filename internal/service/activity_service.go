package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/events"
	"github.com/spec-kit/presence-service/internal/observability"
)

// ActivityService observes presence lifecycle events for logging, counters,
// and the optional webhook stub.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotifyConfig
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotifyConfig) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventPresenceJoined, a.handleEvent)
	a.dispatcher.Subscribe(events.EventPresenceLeft, a.handleEvent)
	a.dispatcher.Subscribe(events.EventTypingStarted, a.handleEvent)
	a.dispatcher.Subscribe(events.EventPresenceSwept, a.handleEvent)
}

func (a *ActivityService) handleEvent(ctx context.Context, event events.Event) error {
	a.metrics.RecordPresenceEvent(string(event.Type))
	a.logger.Info(string(event.Type),
		zap.String("channel_id", event.ChannelID),
		zap.Any("payload", event.Payload))
	a.sendWebhookStub(ctx, event)
	return nil
}

func (a *ActivityService) sendWebhookStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	a.logger.Debug("sendWebhookStub",
		zap.String("url", a.cfg.WebhookURL),
		zap.String("channel_id", event.ChannelID),
		zap.String("event_type", string(event.Type)))
}
