package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/persistence"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// Forecaster is the external inflow forecasting model.
type Forecaster interface {
	// ForecastInflow predicts daily inflow for the next horizonDays. An
	// empty series means insufficient history; that policy lives in the
	// forecaster, not here.
	ForecastInflow(ctx context.Context, horizonDays int) ([]domain.InflowPoint, error)
	// Capacity estimates current team throughput in items per day.
	Capacity(ctx context.Context) (float64, error)
}

const capacityCacheKey = "triage:anticipation:capacity"

// AnticipationService compares forecasted inflow against team capacity and
// raises a risk signal when the horizon contains a breach.
type AnticipationService struct {
	forecaster Forecaster
	cache      *persistence.Redis
	logger     *zap.Logger
}

// NewAnticipationService creates the service. cache may be nil.
func NewAnticipationService(forecaster Forecaster, cache *persistence.Redis, logger *zap.Logger) *AnticipationService {
	return &AnticipationService{forecaster: forecaster, cache: cache, logger: logger}
}

// Enabled requires both the master flag and the anticipation flag.
func (s *AnticipationService) Enabled(cfg *config.TriageConfig) bool {
	return cfg.Enabled && cfg.Anticipation.Enabled
}

// CheckCapacityRisk returns a risk for the first forecasted day whose inflow
// exceeds capacity by more than the configured threshold percentage, or nil
// when the horizon is healthy. Collaborator failures are logged and yield no
// result rather than an error.
func (s *AnticipationService) CheckCapacityRisk(ctx context.Context, cfg *config.TriageConfig) (*domain.CapacityRisk, error) {
	if !s.Enabled(cfg) {
		s.logger.Debug("anticipation disabled")
		return nil, nil
	}

	forecast, err := s.forecaster.ForecastInflow(ctx, cfg.Anticipation.ForecastHorizonDays)
	if err != nil {
		s.logger.Error("inflow forecast failed",
			zap.Error(apperrors.NewCollaboratorFailure("forecaster", err)))
		return nil, nil
	}
	if len(forecast) == 0 {
		s.logger.Warn("insufficient history for inflow forecasting")
		return nil, nil
	}

	capacity, err := s.teamCapacity(ctx, cfg)
	if err != nil {
		s.logger.Error("capacity lookup failed",
			zap.Error(apperrors.NewCollaboratorFailure("forecaster", err)))
		return nil, nil
	}
	if capacity <= 0 {
		s.logger.Warn("team capacity unknown, skipping risk check")
		return nil, nil
	}

	threshold := capacity * (1 + cfg.Anticipation.RiskThresholdPercent/100)
	for _, day := range forecast {
		if float64(day.Count) <= threshold {
			continue
		}
		riskPercent := (float64(day.Count) - capacity) / capacity * 100
		risk := &domain.CapacityRisk{
			FirstBreach:       day.Date,
			ForecastedInflow:  day.Count,
			AvailableCapacity: capacity,
			RiskPercent:       riskPercent,
			Message: fmt.Sprintf(
				"Capacity risk on %s: forecasted inflow %d items/day exceeds capacity %.1f items/day by %.0f%%. Consider adding agents or reprioritizing the backlog.",
				day.Date.Format("2006-01-02"), day.Count, capacity, riskPercent),
		}
		s.logger.Warn("capacity risk detected",
			zap.Time("first_breach", risk.FirstBreach),
			zap.Int("forecasted_inflow", risk.ForecastedInflow),
			zap.Float64("capacity", risk.AvailableCapacity),
			zap.Float64("risk_percent", risk.RiskPercent))
		return risk, nil
	}

	s.logger.Info("capacity healthy over forecast horizon",
		zap.Int("horizon_days", len(forecast)),
		zap.Float64("capacity", capacity))
	return nil, nil
}

// teamCapacity returns the capacity estimate, cached in Redis for the
// configured refresh period.
func (s *AnticipationService) teamCapacity(ctx context.Context, cfg *config.TriageConfig) (float64, error) {
	if s.cache != nil && s.cache.Client != nil {
		if cached, err := s.cache.Client.Get(ctx, capacityCacheKey).Result(); err == nil {
			if capacity, err := strconv.ParseFloat(cached, 64); err == nil {
				return capacity, nil
			}
		}
	}

	capacity, err := s.forecaster.Capacity(ctx)
	if err != nil {
		return 0, err
	}

	if s.cache != nil && s.cache.Client != nil {
		ttl := time.Duration(cfg.Anticipation.CapacityRefreshHours) * time.Hour
		if err := s.cache.Client.Set(ctx, capacityCacheKey, strconv.FormatFloat(capacity, 'f', -1, 64), ttl).Err(); err != nil {
			s.logger.Warn("failed to cache capacity estimate", zap.Error(err))
		}
	}
	return capacity, nil
}
