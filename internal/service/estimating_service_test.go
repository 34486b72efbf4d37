package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
)

func estimatingConfig() *config.TriageConfig {
	cfg := config.DefaultTriageConfig()
	cfg.Estimating.CategoryEffortMap = []config.CategoryEffort{
		{Category: "Password Reset", Points: 1},
		{Category: "Hardware Request", Points: 3},
		{Category: "Software Bug", Points: 8},
		{Category: "System Outage", Points: 13},
	}
	return cfg
}

func TestInferCategory(t *testing.T) {
	configured := estimatingConfig().Estimating.CategoryEffortMap

	tests := []struct {
		name string
		text string
		want string
	}{
		{"configured name match", "we have a System Outage in berlin", "System Outage"},
		{"keyword password", "cannot remember my password", "Password Reset"},
		{"keyword hardware", "need a new laptop for onboarding", "Hardware Request"},
		{"keyword bug", "the app shows an error on save", "Software Bug"},
		{"keyword outage", "intranet is down again", "System Outage"},
		{"no match", "please update my mailing address", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferCategory(tt.text, configured))
		})
	}
}

func TestEstimateEffort(t *testing.T) {
	cfg := estimatingConfig()

	tests := []struct {
		name        string
		description string
		wantPoints  int
		wantTag     string
	}{
		{"outage maps to highest bucket", "everything is offline", 13, "Category:System Outage"},
		{"password reset", "password expired", 1, "Category:Password Reset"},
		{"unknown falls back to default", "question about vacation days", cfg.Estimating.DefaultPoints, "Category:Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemItemRepo(&domain.WorkItem{ID: "item-1", Description: tt.description, Status: domain.StatusPending})
			svc := NewEstimatingService(repo, zap.NewNop())

			points, err := svc.EstimateEffort(context.Background(), "item-1", cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPoints, points)

			saved := repo.get("item-1")
			assert.Equal(t, tt.wantPoints, saved.EffortPoints)
			assert.True(t, saved.HasTag(tt.wantTag), "expected tag %q, got %v", tt.wantTag, saved.Tags)
		})
	}
}

func TestEstimateEffortIsDeterministic(t *testing.T) {
	cfg := estimatingConfig()
	repo := newMemItemRepo(&domain.WorkItem{ID: "item-1", Description: "printer hardware is failing", Status: domain.StatusPending})
	svc := NewEstimatingService(repo, zap.NewNop())

	first, err := svc.EstimateEffort(context.Background(), "item-1", cfg)
	require.NoError(t, err)
	second, err := svc.EstimateEffort(context.Background(), "item-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	saved := repo.get("item-1")
	categoryTags := 0
	for _, tag := range saved.Tags {
		if domain.TagCategory(tag) == domain.TagCategoryName {
			categoryTags++
		}
	}
	assert.Equal(t, 1, categoryTags, "re-estimation must not stack category tags")
}

func TestEstimateEffortMissingItem(t *testing.T) {
	cfg := estimatingConfig()
	svc := NewEstimatingService(newMemItemRepo(), zap.NewNop())

	points, err := svc.EstimateEffort(context.Background(), "ghost", cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Estimating.DefaultPoints, points)
}

func TestPointsForCategoryPartialMatch(t *testing.T) {
	settings := estimatingConfig().Estimating
	settings.CategoryEffortMap = append(settings.CategoryEffortMap, config.CategoryEffort{Category: "Outage", Points: 20})

	assert.Equal(t, 13, pointsForCategory("System Outage", settings))
	assert.Equal(t, 8, pointsForCategory("software bug", settings))
	assert.Equal(t, 3, pointsForCategory("Hardware", settings))
	assert.Equal(t, settings.DefaultPoints, pointsForCategory("Gardening", settings))
}
