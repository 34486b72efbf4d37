package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// ItemResult summarizes one pipeline pass over a single work item.
type ItemResult struct {
	ItemID          string                  `json:"item_id"`
	ParentID        *string                 `json:"parent_id,omitempty"`
	EffortPoints    int                     `json:"effort_points"`
	PriorityScore   float64                 `json:"priority_score"`
	Recommendations []domain.Recommendation `json:"recommendations,omitempty"`
}

// BatchResult summarizes a sweep over all open items.
type BatchResult struct {
	Processed int                  `json:"processed"`
	Failed    int                  `json:"failed"`
	Risk      *domain.CapacityRisk `json:"capacity_risk,omitempty"`
}

// TriageServiceDependencies wires the orchestrator's collaborators. Ranking,
// dispatching and anticipation are optional stages; a nil stage is simply not
// installed.
type TriageServiceDependencies struct {
	Items        repository.WorkItemRepository
	Features     *FeatureExtractor
	Grouping     *GroupingService
	Estimating   *EstimatingService
	Ranking      *RankingService
	Dispatching  *DispatchingService
	Anticipation *AnticipationService
	Config       *config.TriageConfigProvider
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// TriageService runs the triage pipeline: grouping, estimating, ranking and
// dispatching per item, with an anticipation check per batch.
type TriageService struct {
	deps TriageServiceDependencies
}

// NewTriageService creates the orchestrator.
func NewTriageService(deps TriageServiceDependencies) *TriageService {
	return &TriageService{deps: deps}
}

// ProcessItem runs every installed stage over one item in order. A stage
// failure stops the pass and propagates. When triage is disabled globally no
// collaborator is touched.
func (s *TriageService) ProcessItem(ctx context.Context, itemID string) (*ItemResult, error) {
	cfg := s.deps.Config.Snapshot()
	if !cfg.Enabled {
		s.deps.Logger.Debug("triage disabled, skipping item", zap.String("item_id", itemID))
		return &ItemResult{ItemID: itemID}, nil
	}
	return s.processItem(ctx, itemID, cfg)
}

func (s *TriageService) processItem(ctx context.Context, itemID string, cfg *config.TriageConfig) (*ItemResult, error) {
	result := &ItemResult{ItemID: itemID}

	parentID, err := s.deps.Grouping.CheckAndGroup(ctx, itemID, cfg)
	s.deps.Metrics.RecordStage("grouping", err == nil)
	if err != nil {
		return nil, err
	}
	result.ParentID = parentID
	if parentID != nil {
		s.publish(ctx, events.EventItemGrouped, itemID, events.ItemGroupedPayload{
			ParentID: *parentID,
			Action:   cfg.Grouping.Action,
		})
	}

	points, err := s.deps.Estimating.EstimateEffort(ctx, itemID, cfg)
	s.deps.Metrics.RecordStage("estimating", err == nil)
	if err != nil {
		return nil, err
	}
	result.EffortPoints = points
	s.publish(ctx, events.EventItemEstimated, itemID, events.ItemEstimatedPayload{EffortPoints: points})

	if s.deps.Ranking != nil {
		score, err := s.deps.Ranking.ComputeScore(ctx, itemID, cfg)
		s.deps.Metrics.RecordStage("ranking", err == nil)
		if err != nil {
			return nil, err
		}
		result.PriorityScore = score
		s.publish(ctx, events.EventItemRanked, itemID, events.ItemRankedPayload{
			PriorityScore: score,
			Strategy:      cfg.Ranking.Strategy,
		})
	}

	if s.deps.Dispatching != nil {
		recommendations, err := s.deps.Dispatching.RecommendAgents(ctx, itemID, cfg, cfg.Dispatching.RecommendationTopK)
		s.deps.Metrics.RecordStage("dispatching", err == nil)
		if err != nil {
			return nil, err
		}
		result.Recommendations = recommendations
		if len(recommendations) > 0 {
			if err := s.deps.Dispatching.AutoDispatch(ctx, itemID, recommendations, cfg); err != nil {
				return nil, err
			}
			s.publish(ctx, events.EventAgentRecommended, itemID, events.AgentRecommendedPayload{
				Recommendations: recommendations,
				AutoDispatched:  s.deps.Dispatching.Enabled(cfg) && cfg.Dispatching.AutoDispatch,
			})
		}
	}

	return result, nil
}

// ProcessAllOpenItems sweeps every open item through the pipeline, isolating
// per-item failures, then runs the anticipation check once over the batch.
func (s *TriageService) ProcessAllOpenItems(ctx context.Context) (*BatchResult, error) {
	cfg := s.deps.Config.Snapshot()
	batch := &BatchResult{}
	if !cfg.Enabled {
		s.deps.Logger.Debug("triage disabled, skipping batch run")
		return batch, nil
	}

	items, err := s.deps.Items.GetOpenItems(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.deps.Logger.Info("starting triage batch run", zap.Int("open_items", len(items)))
	start := time.Now()

	for _, item := range items {
		if _, err := s.processItem(ctx, item.ID, cfg); err != nil {
			s.deps.Logger.Error("triage failed for item",
				zap.String("item_id", item.ID),
				zap.Error(err))
			batch.Failed++
			continue
		}
		batch.Processed++
	}

	if s.deps.Anticipation != nil {
		risk, err := s.deps.Anticipation.CheckCapacityRisk(ctx, cfg)
		s.deps.Metrics.RecordStage("anticipation", err == nil)
		if err != nil {
			s.deps.Logger.Error("anticipation check failed", zap.Error(err))
		}
		batch.Risk = risk
		if risk != nil {
			s.publish(ctx, events.EventCapacityRisk, "", events.CapacityRiskPayload{
				FirstBreach:       risk.FirstBreach,
				ForecastedInflow:  risk.ForecastedInflow,
				AvailableCapacity: risk.AvailableCapacity,
				RiskPercent:       risk.RiskPercent,
				Message:           risk.Message,
			})
		}
	}

	s.deps.Logger.Info("completed triage batch run",
		zap.Int("processed", batch.Processed),
		zap.Int("failed", batch.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return batch, nil
}

// RecalculateAllPriorities rescores every open item. Intended for the
// scheduled recalculation job and the manual admin endpoint.
func (s *TriageService) RecalculateAllPriorities(ctx context.Context) (int, error) {
	cfg := s.deps.Config.Snapshot()
	if s.deps.Ranking == nil {
		return 0, nil
	}
	return s.deps.Ranking.RecalculateAll(ctx, cfg)
}

// RetrainModel kicks off dispatcher model retraining. Intended for the
// scheduled retraining job.
func (s *TriageService) RetrainModel(ctx context.Context) error {
	cfg := s.deps.Config.Snapshot()
	if s.deps.Dispatching == nil {
		return nil
	}
	s.deps.Dispatching.Retrain(ctx, cfg)
	return nil
}

// OpenItemCount reports how many items are currently awaiting work.
func (s *TriageService) OpenItemCount(ctx context.Context) (int, error) {
	count, err := s.deps.Items.CountOpen(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// PrioritizedBacklog returns open item ids in priority order.
func (s *TriageService) PrioritizedBacklog(ctx context.Context) ([]string, error) {
	if s.deps.Ranking == nil {
		return nil, nil
	}
	return s.deps.Ranking.GetPrioritizedIDs(ctx)
}

// ItemFeatures extracts the item's numeric feature vector per the schema
// configured for the given domain. Used as model input and for inspecting
// what a model would see.
func (s *TriageService) ItemFeatures(ctx context.Context, itemID, domainID string) ([]float64, error) {
	if s.deps.Features == nil {
		return nil, nil
	}
	cfg := s.deps.Config.Snapshot()
	schema, ok := cfg.Features[domainID]
	if !ok {
		return nil, apperrors.NewConfigurationError("no feature schema configured", map[string]any{"domain": domainID})
	}

	item, err := s.deps.Items.GetByID(ctx, itemID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("work item", map[string]any{"item_id": itemID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.deps.Features.ExtractFeatures(item, schema), nil
}

// CapacityRisk runs the anticipation check on demand.
func (s *TriageService) CapacityRisk(ctx context.Context) (*domain.CapacityRisk, error) {
	cfg := s.deps.Config.Snapshot()
	if s.deps.Anticipation == nil {
		return nil, nil
	}
	return s.deps.Anticipation.CheckCapacityRisk(ctx, cfg)
}

func (s *TriageService) publish(ctx context.Context, eventType events.EventType, itemID string, payload interface{}) {
	if s.deps.Dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ItemID:    itemID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.deps.Dispatcher.Publish(ctx, event); err != nil {
		s.deps.Logger.Warn("event publication failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
