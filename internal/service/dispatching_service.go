package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// AffinityScorer is the trained recommendation model, treated as a black box
// returning an affinity score per requester/agent pairing.
type AffinityScorer interface {
	Score(ctx context.Context, requesterID, agentID string) (float64, error)
	Retrain(ctx context.Context) error
}

// DispatchingService ranks candidate agents for a work item by combining the
// external affinity model with local workload policy.
type DispatchingService struct {
	items  repository.WorkItemRepository
	agents repository.AgentRepository
	scorer AffinityScorer
	logger *zap.Logger
}

// NewDispatchingService creates the service.
func NewDispatchingService(items repository.WorkItemRepository, agents repository.AgentRepository, scorer AffinityScorer, logger *zap.Logger) *DispatchingService {
	return &DispatchingService{items: items, agents: agents, scorer: scorer, logger: logger}
}

// Enabled requires both the master flag and the dispatching flag.
func (s *DispatchingService) Enabled(cfg *config.TriageConfig) bool {
	return cfg.Enabled && cfg.Dispatching.Enabled
}

// RecommendAgents returns up to topK candidate agents ordered by adjusted
// affinity. Agents at or over the configured capacity are excluded; agents
// under it are penalized proportionally to their load, up to 50%.
func (s *DispatchingService) RecommendAgents(ctx context.Context, itemID string, cfg *config.TriageConfig, topK int) ([]domain.Recommendation, error) {
	if !s.Enabled(cfg) {
		s.logger.Debug("dispatching disabled")
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("work item not found for dispatching", zap.String("item_id", itemID))
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}

	agents, err := s.agents.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(agents) == 0 {
		s.logger.Warn("no active agents available for dispatching")
		return nil, nil
	}

	workloads, err := s.items.CountOpenByAssignee(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	maxAssigned := cfg.Dispatching.MaxAssignedPerAgent
	recommendations := make([]domain.Recommendation, 0, len(agents))
	modelAvailable := true

	for _, agent := range agents {
		load := workloads[agent.ID]
		if load >= maxAssigned {
			continue
		}

		score, err := s.scorer.Score(ctx, item.RequesterID, agent.ID)
		if err != nil {
			s.logger.Error("affinity scorer failed",
				zap.String("agent_id", agent.ID),
				zap.Error(apperrors.NewCollaboratorFailure("affinity scorer", err)))
			modelAvailable = false
			break
		}

		loadPenalty := float64(load) / float64(maxAssigned)
		adjusted := score * (1.0 - loadPenalty*0.5)
		recommendations = append(recommendations, domain.Recommendation{AgentID: agent.ID, Score: adjusted})
	}

	if !modelAvailable || allZero(recommendations) {
		s.logger.Info("affinity model yielded no usable scores, using workload fallback",
			zap.String("item_id", item.ID))
		return s.workloadFallback(agents, workloads, maxAssigned, topK), nil
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return recommendations[i].Score > recommendations[j].Score
	})
	if len(recommendations) > topK {
		recommendations = recommendations[:topK]
	}

	if len(recommendations) > 0 {
		s.logger.Info("recommended agents for work item",
			zap.String("item_id", item.ID),
			zap.String("best_agent", recommendations[0].AgentID),
			zap.Float64("score", recommendations[0].Score))
	}
	return recommendations, nil
}

// AutoDispatch writes the top recommendation onto the item when the policy
// is configured, tagging it so the assignment is traceable.
func (s *DispatchingService) AutoDispatch(ctx context.Context, itemID string, recommendations []domain.Recommendation, cfg *config.TriageConfig) error {
	if !s.Enabled(cfg) || !cfg.Dispatching.AutoDispatch || len(recommendations) == 0 {
		return nil
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return apperrors.MapError(err)
	}

	best := recommendations[0].AgentID
	item.AssigneeID = &best
	item.SetTag(domain.TagAutoDispatch)
	if err := s.items.Save(ctx, item); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("auto-dispatched work item",
		zap.String("item_id", item.ID),
		zap.String("agent_id", best))
	return nil
}

// Retrain triggers model retraining in the background. Failures are logged
// and never propagate to the caller.
func (s *DispatchingService) Retrain(ctx context.Context, cfg *config.TriageConfig) {
	if !s.Enabled(cfg) {
		return
	}
	go func() {
		if err := s.scorer.Retrain(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("model retraining failed",
				zap.Error(apperrors.NewCollaboratorFailure("affinity scorer", err)))
			return
		}
		s.logger.Info("model retraining completed")
	}()
}

// workloadFallback recommends the least-loaded agents under capacity.
func (s *DispatchingService) workloadFallback(agents []domain.Agent, workloads map[string]int, maxAssigned, topK int) []domain.Recommendation {
	eligible := make([]domain.Recommendation, 0, len(agents))
	for _, agent := range agents {
		load := workloads[agent.ID]
		if load >= maxAssigned {
			continue
		}
		eligible = append(eligible, domain.Recommendation{
			AgentID: agent.ID,
			Score:   1.0 - float64(load)/float64(maxAssigned),
		})
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Score > eligible[j].Score
	})
	if len(eligible) > topK {
		eligible = eligible[:topK]
	}
	return eligible
}

func allZero(recommendations []domain.Recommendation) bool {
	for _, r := range recommendations {
		if r.Score > 0 {
			return false
		}
	}
	return true
}
