package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// GroupingService detects duplicate submissions via content fingerprinting
// and collapses them under one promoted parent item.
type GroupingService struct {
	items  repository.WorkItemRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewGroupingService creates the service.
func NewGroupingService(items repository.WorkItemRepository, logger *zap.Logger) *GroupingService {
	return &GroupingService{items: items, logger: logger, now: time.Now}
}

// Enabled requires both the master flag and the grouping flag.
func (s *GroupingService) Enabled(cfg *config.TriageConfig) bool {
	return cfg.Enabled && cfg.Grouping.Enabled
}

// CheckAndGroup fingerprints the item, looks for open duplicates inside the
// trailing time window and links the item under a resolved parent when the
// AutoMerge action is configured. Returns the resolved parent id, or nil
// when no duplicates exist. Re-running for an already linked item never
// reassigns the parent or duplicates tags.
func (s *GroupingService) CheckAndGroup(ctx context.Context, itemID string, cfg *config.TriageConfig) (*string, error) {
	if !s.Enabled(cfg) {
		s.logger.Debug("grouping disabled")
		return nil, nil
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("work item not found for grouping", zap.String("item_id", itemID))
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}

	// Compute and cache the fingerprint for legacy rows that lack one.
	if item.ContentHash == "" {
		item.ContentHash = ComputeContentHash(item.Description, item.RequesterID)
		if err := s.items.Save(ctx, item); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	cutoff := s.now().Add(-cfg.Grouping.TimeWindow())
	candidates, err := s.items.FindDuplicateCandidates(ctx, item.ContentHash, cutoff, item.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	s.logger.Info("duplicate submissions detected",
		zap.Int("count", len(candidates)),
		zap.String("content_hash", item.ContentHash),
		zap.String("item_id", item.ID))

	parentID, err := s.resolveParent(ctx, candidates, cfg)
	if err != nil {
		return nil, err
	}
	if parentID == "" {
		return nil, nil
	}

	if cfg.Grouping.Action == config.ActionAutoMerge {
		// Idempotent linking: an already set parent is never reassigned.
		if item.ParentID == nil {
			item.ParentID = &parentID
		}
		item.SetTag(domain.TagSpamCluster)
		if err := s.items.Save(ctx, item); err != nil {
			return nil, apperrors.MapError(err)
		}
		s.logger.Info("linked duplicate item to parent",
			zap.String("item_id", item.ID),
			zap.String("parent_id", *item.ParentID))
		return item.ParentID, nil
	}

	// Flag action: report the parent for observability without linking.
	return &parentID, nil
}

// resolveParent picks a single parent for the candidate set, in priority
// order: an existing parent referenced by any candidate, a candidate that is
// itself a parent, else the oldest candidate promoted in place.
func (s *GroupingService) resolveParent(ctx context.Context, candidates []domain.WorkItem, cfg *config.TriageConfig) (string, error) {
	for _, c := range candidates {
		if c.ParentID != nil {
			return *c.ParentID, nil
		}
	}

	for _, c := range candidates {
		isParent, err := s.items.HasChildren(ctx, c.ID)
		if err != nil {
			return "", apperrors.MapError(err)
		}
		if isParent {
			return c.ID, nil
		}
	}

	// Candidates arrive newest-first; promote the oldest.
	oldest := candidates[len(candidates)-1]
	if err := s.promoteParent(ctx, &oldest, cfg); err != nil {
		return "", err
	}
	return oldest.ID, nil
}

func (s *GroupingService) promoteParent(ctx context.Context, parent *domain.WorkItem, cfg *config.TriageConfig) error {
	prefix := cfg.Grouping.GroupedItemPrefix
	if strings.HasPrefix(parent.Description, prefix) {
		// Already promoted; re-promotion is a no-op.
		return nil
	}
	parent.Description = prefix + parent.Description
	parent.SetTag(domain.TagParentCluster)
	if err := s.items.Save(ctx, parent); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("promoted item as cluster parent", zap.String("item_id", parent.ID))
	return nil
}
