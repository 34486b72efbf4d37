package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// defaultJobSize substitutes a medium effort when no estimate exists yet.
const defaultJobSize = 5

// RankingStrategy scores a work item's priority.
type RankingStrategy interface {
	Name() string
	Score(item *domain.WorkItem, cfg *config.TriageConfig, now time.Time) float64
}

// WSJFStrategy implements Weighted-Shortest-Job-First scoring:
// priority = cost of delay / job size, with SLA-tiered urgency.
type WSJFStrategy struct{}

// Name returns the registry key.
func (WSJFStrategy) Name() string { return "WSJF" }

// Score computes the WSJF priority for the item.
func (WSJFStrategy) Score(item *domain.WorkItem, cfg *config.TriageConfig, now time.Time) float64 {
	costOfDelay := costOfDelay(item, cfg.Ranking.SlaWeight, now)

	jobSize := item.EffortPoints
	if jobSize <= 0 {
		jobSize = defaultJobSize
	}
	return costOfDelay / float64(jobSize)
}

// costOfDelay maps remaining SLA slack to an urgency tier. Smaller slack
// always yields a higher cost; a breached deadline is the maximum tier.
func costOfDelay(item *domain.WorkItem, slaWeight float64, now time.Time) float64 {
	if item.CompletionTarget == nil {
		ageDays := now.Sub(item.CreatedAt).Hours() / 24
		return ageDays * slaWeight / 10
	}

	daysUntil := item.CompletionTarget.Sub(now).Hours() / 24
	switch {
	case daysUntil <= 0:
		return slaWeight * 10
	case daysUntil <= 1:
		return slaWeight * 5
	case daysUntil <= 3:
		return slaWeight * 2
	default:
		return slaWeight / daysUntil
	}
}

// RankingService computes and persists WSJF-style priority scores.
type RankingService struct {
	items      repository.WorkItemRepository
	strategies *Registry[RankingStrategy]
	logger     *zap.Logger
	now        func() time.Time
}

// NewRankingService creates the service with the given strategy registry.
func NewRankingService(items repository.WorkItemRepository, strategies *Registry[RankingStrategy], logger *zap.Logger) *RankingService {
	return &RankingService{items: items, strategies: strategies, logger: logger, now: time.Now}
}

// Enabled requires both the master flag and the ranking flag.
func (s *RankingService) Enabled(cfg *config.TriageConfig) bool {
	return cfg.Enabled && cfg.Ranking.Enabled
}

// ComputeScore recomputes the item's priority score from its current effort
// points and urgency inputs and persists it. The score is derived state.
func (s *RankingService) ComputeScore(ctx context.Context, itemID string, cfg *config.TriageConfig) (float64, error) {
	if !s.Enabled(cfg) {
		s.logger.Debug("ranking disabled")
		return 0, nil
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("work item not found for ranking", zap.String("item_id", itemID))
			return 0, nil
		}
		return 0, apperrors.MapError(err)
	}

	strategy, err := s.strategies.Resolve(cfg.Ranking.Strategy)
	if err != nil {
		return 0, err
	}

	score := strategy.Score(item, cfg, s.now())
	item.PriorityScore = score
	if err := s.items.Save(ctx, item); err != nil {
		return 0, apperrors.MapError(err)
	}

	s.logger.Info("ranked work item",
		zap.String("item_id", item.ID),
		zap.Float64("score", score),
		zap.String("strategy", strategy.Name()))
	return score, nil
}

// RecalculateAll rescoring sweeps every open item, continuing past per-item
// failures, and returns the number of items processed.
func (s *RankingService) RecalculateAll(ctx context.Context, cfg *config.TriageConfig) (int, error) {
	if !s.Enabled(cfg) {
		s.logger.Debug("ranking disabled, skipping recalculation")
		return 0, nil
	}

	s.logger.Info("starting priority recalculation for all open items")

	items, err := s.items.GetOpenItems(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}

	processed := 0
	for _, item := range items {
		if _, err := s.ComputeScore(ctx, item.ID, cfg); err != nil {
			s.logger.Error("priority recalculation failed for item",
				zap.String("item_id", item.ID),
				zap.Error(err))
			continue
		}
		processed++
	}

	s.logger.Info("completed priority recalculation", zap.Int("processed", processed))
	return processed, nil
}

// GetPrioritizedIDs returns open item ids ordered by descending priority
// score; ties go to the older item.
func (s *RankingService) GetPrioritizedIDs(ctx context.Context) ([]string, error) {
	items, err := s.items.GetOpenItems(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PriorityScore != items[j].PriorityScore {
			return items[i].PriorityScore > items[j].PriorityScore
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids, nil
}
