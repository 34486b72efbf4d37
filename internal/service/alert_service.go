package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/persistence"
)

const capacityAlertDedupeKey = "triage:alerts:capacity_risk"

// AlertService emits operator alerts for noteworthy pipeline events.
type AlertService struct {
	dispatcher events.Dispatcher
	cache      *persistence.Redis
	logger     *zap.Logger
	cfg        config.AlertConfig
}

// NewAlertService creates the service.
func NewAlertService(dispatcher events.Dispatcher, cache *persistence.Redis, logger *zap.Logger, cfg config.AlertConfig) *AlertService {
	return &AlertService{
		dispatcher: dispatcher,
		cache:      cache,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (a *AlertService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventCapacityRisk, a.handleCapacityRisk)
	a.dispatcher.Subscribe(events.EventItemGrouped, a.handleItemGrouped)
}

// handleCapacityRisk raises one alert per dedupe window so a risk that
// persists across batch runs does not page repeatedly.
func (a *AlertService) handleCapacityRisk(ctx context.Context, event events.Event) error {
	if a.cache != nil && a.cache.Client != nil {
		fresh, err := a.cache.Client.SetNX(ctx, capacityAlertDedupeKey, time.Now().UTC().Format(time.RFC3339),
			time.Duration(a.cfg.CapacityAlertCooldownHours)*time.Hour).Result()
		if err == nil && !fresh {
			a.logger.Debug("capacity risk alert suppressed by cooldown")
			return nil
		}
	}
	a.logger.Warn("CapacityRisk", zap.Any("payload", event.Payload))
	a.sendWebhookAlertStub(ctx, event)
	return nil
}

func (a *AlertService) handleItemGrouped(ctx context.Context, event events.Event) error {
	a.logger.Info("ItemGrouped", zap.String("item_id", event.ItemID), zap.Any("payload", event.Payload))
	return nil
}

func (a *AlertService) sendWebhookAlertStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	a.logger.Debug("sendWebhookAlertStub",
		zap.String("url", a.cfg.WebhookURL),
		zap.String("event_type", string(event.Type)))
}
