package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// fallbackCategories maps common intent keywords to a category bucket when no
// configured category matches the item text. Order matters: buckets are
// checked top to bottom.
var fallbackCategories = []struct {
	category string
	keywords []string
}{
	{"Password Reset", []string{"password", "credential", "login"}},
	{"Hardware Request", []string{"hardware", "laptop", "computer", "printer", "monitor"}},
	{"Software Bug", []string{"bug", "error", "crash"}},
	{"System Outage", []string{"outage", "down", "offline"}},
}

const fallbackCategoryOther = "Other"

// EstimatingService assigns an effort-points estimate via category lookup
// with keyword-based category inference.
type EstimatingService struct {
	items  repository.WorkItemRepository
	logger *zap.Logger
}

// NewEstimatingService creates the service.
func NewEstimatingService(items repository.WorkItemRepository, logger *zap.Logger) *EstimatingService {
	return &EstimatingService{items: items, logger: logger}
}

// Enabled requires both the master flag and the estimating flag.
func (s *EstimatingService) Enabled(cfg *config.TriageConfig) bool {
	return cfg.Enabled && cfg.Estimating.Enabled
}

// EstimateEffort infers the item's category, looks up its effort points and
// persists them onto the item. Deterministic for identical text and
// configuration.
func (s *EstimatingService) EstimateEffort(ctx context.Context, itemID string, cfg *config.TriageConfig) (int, error) {
	if !s.Enabled(cfg) {
		s.logger.Debug("estimating disabled")
		return cfg.Estimating.DefaultPoints, nil
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("work item not found for estimating", zap.String("item_id", itemID))
			return cfg.Estimating.DefaultPoints, nil
		}
		return 0, apperrors.MapError(err)
	}

	category := InferCategory(item.Description, cfg.Estimating.CategoryEffortMap)
	points := pointsForCategory(category, cfg.Estimating)

	item.EffortPoints = points
	item.SetTag(domain.TagCategoryName + ":" + category)
	if err := s.items.Save(ctx, item); err != nil {
		return 0, apperrors.MapError(err)
	}

	s.logger.Info("estimated work item effort",
		zap.String("item_id", item.ID),
		zap.String("category", category),
		zap.Int("points", points))
	return points, nil
}

// InferCategory resolves a category label for the given text: configured
// category names first (case-insensitive substring), then the fixed keyword
// fallback table, else "Other".
func InferCategory(text string, configured []config.CategoryEffort) string {
	lowered := strings.ToLower(text)

	for _, entry := range configured {
		if entry.Category != "" && strings.Contains(lowered, strings.ToLower(entry.Category)) {
			return entry.Category
		}
	}

	for _, bucket := range fallbackCategories {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lowered, keyword) {
				return bucket.category
			}
		}
	}
	return fallbackCategoryOther
}

// pointsForCategory looks the category up in the configured map; on miss it
// tries a bidirectional partial match before falling back to the default.
func pointsForCategory(category string, settings config.EstimatingSettings) int {
	if category == "" {
		return settings.DefaultPoints
	}
	lowered := strings.ToLower(category)

	for _, entry := range settings.CategoryEffortMap {
		if strings.ToLower(entry.Category) == lowered {
			return entry.Points
		}
	}
	for _, entry := range settings.CategoryEffortMap {
		key := strings.ToLower(entry.Category)
		if key == "" {
			continue
		}
		if strings.Contains(lowered, key) || strings.Contains(key, lowered) {
			return entry.Points
		}
	}
	return settings.DefaultPoints
}
