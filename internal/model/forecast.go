package model

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// perAgentDailyThroughput is the assumed number of items one active agent
// resolves per day when estimating team capacity.
const perAgentDailyThroughput = 4.0

// MovingAverageForecaster predicts daily inflow with a per-weekday moving
// average over historical submission counts. Weekly seasonality dominates
// helpdesk inflow, so averaging by day of week captures most of the signal.
type MovingAverageForecaster struct {
	items  repository.WorkItemRepository
	agents repository.AgentRepository
	cfg    *config.TriageConfigProvider
	logger *zap.Logger
	now    func() time.Time
}

// NewMovingAverageForecaster creates the forecaster.
func NewMovingAverageForecaster(items repository.WorkItemRepository, agents repository.AgentRepository, cfg *config.TriageConfigProvider, logger *zap.Logger) *MovingAverageForecaster {
	return &MovingAverageForecaster{items: items, agents: agents, cfg: cfg, logger: logger, now: time.Now}
}

// ForecastInflow predicts inflow for the next horizonDays. Returns an empty
// series when the available history is shorter than the configured minimum.
func (f *MovingAverageForecaster) ForecastInflow(ctx context.Context, horizonDays int) ([]domain.InflowPoint, error) {
	settings := f.cfg.Snapshot().Anticipation
	since := f.now().AddDate(-settings.InflowHistoryYears, 0, 0)

	history, err := f.items.DailyCreatedCounts(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(history) < settings.MinHistoryDays {
		f.logger.Warn("not enough inflow history to forecast",
			zap.Int("history_days", len(history)),
			zap.Int("min_days", settings.MinHistoryDays))
		return nil, nil
	}

	// Average counts per weekday over the whole history window.
	var sums, counts [7]int
	for _, point := range history {
		weekday := int(point.Date.Weekday())
		sums[weekday] += point.Count
		counts[weekday]++
	}

	forecast := make([]domain.InflowPoint, 0, horizonDays)
	today := f.now().UTC().Truncate(24 * time.Hour)
	for i := 1; i <= horizonDays; i++ {
		date := today.AddDate(0, 0, i)
		weekday := int(date.Weekday())
		predicted := 0
		if counts[weekday] > 0 {
			predicted = sums[weekday] / counts[weekday]
		}
		forecast = append(forecast, domain.InflowPoint{Date: date, Count: predicted})
	}
	return forecast, nil
}

// Capacity estimates team throughput from the active agent roster.
func (f *MovingAverageForecaster) Capacity(ctx context.Context) (float64, error) {
	agents, err := f.agents.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	return float64(len(agents)) * perAgentDailyThroughput, nil
}
