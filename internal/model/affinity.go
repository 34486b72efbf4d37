package model

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/persistence"
	"github.com/spec-kit/triage-service/internal/repository"
)

const lastTrainedKey = "triage:affinity:last_trained"

// HistoryAffinityScorer scores requester/agent affinity from completed
// assignment history. A pairing below the configured minimum history scores
// zero so the dispatcher can fall back to workload policy.
type HistoryAffinityScorer struct {
	items  repository.WorkItemRepository
	cache  *persistence.Redis
	cfg    *config.TriageConfigProvider
	logger *zap.Logger

	mu     sync.RWMutex
	counts map[string]map[string]int
	maxCnt int
}

// NewHistoryAffinityScorer creates the scorer. The model is empty until the
// first Retrain call.
func NewHistoryAffinityScorer(items repository.WorkItemRepository, cache *persistence.Redis, cfg *config.TriageConfigProvider, logger *zap.Logger) *HistoryAffinityScorer {
	return &HistoryAffinityScorer{items: items, cache: cache, cfg: cfg, logger: logger}
}

// Score returns a value in [0,1] proportional to how often this agent
// completed items for this requester, relative to the busiest pairing.
func (s *HistoryAffinityScorer) Score(ctx context.Context, requesterID, agentID string) (float64, error) {
	s.mu.RLock()
	trained := s.counts != nil
	s.mu.RUnlock()
	if !trained {
		if err := s.Retrain(ctx); err != nil {
			return 0, err
		}
	}

	minHistory := s.cfg.Snapshot().Dispatching.MinHistoryForAffinity

	s.mu.RLock()
	defer s.mu.RUnlock()
	count := s.counts[requesterID][agentID]
	if count < minHistory || s.maxCnt == 0 {
		return 0, nil
	}
	return float64(count) / float64(s.maxCnt), nil
}

// Retrain rebuilds the pairing counts from completed items.
func (s *HistoryAffinityScorer) Retrain(ctx context.Context) error {
	counts, err := s.items.CompletedPairCounts(ctx)
	if err != nil {
		return err
	}

	maxCnt := 0
	pairs := 0
	for _, agents := range counts {
		for _, n := range agents {
			pairs++
			if n > maxCnt {
				maxCnt = n
			}
		}
	}

	s.mu.Lock()
	s.counts = counts
	s.maxCnt = maxCnt
	s.mu.Unlock()

	if s.cache != nil && s.cache.Client != nil {
		if err := s.cache.Client.Set(ctx, lastTrainedKey, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
			s.logger.Warn("failed to record training timestamp", zap.Error(err))
		}
	}

	s.logger.Info("affinity model trained",
		zap.Int("pairings", pairs),
		zap.Int("max_count", maxCnt))
	return nil
}

// LastTrained reports the recorded training timestamp, zero when unknown.
func (s *HistoryAffinityScorer) LastTrained(ctx context.Context) time.Time {
	if s.cache == nil || s.cache.Client == nil {
		return time.Time{}
	}
	raw, err := s.cache.Client.Get(ctx, lastTrainedKey).Result()
	if err != nil {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
