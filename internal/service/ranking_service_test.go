package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

func rankingRegistry() *Registry[RankingStrategy] {
	registry := NewRegistry[RankingStrategy]()
	registry.Register("WSJF", WSJFStrategy{})
	return registry
}

func TestWSJFScoreTiers(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cfg := config.DefaultTriageConfig()
	cfg.Ranking.SlaWeight = 100

	target := func(d time.Duration) *time.Time {
		ts := now.Add(d)
		return &ts
	}

	tests := []struct {
		name string
		item domain.WorkItem
		want float64
	}{
		{
			name: "no target scales with age",
			item: domain.WorkItem{EffortPoints: 5, CreatedAt: now.Add(-48 * time.Hour)},
			want: (2 * 100.0 / 10) / 5,
		},
		{
			name: "breached target is maximum urgency",
			item: domain.WorkItem{EffortPoints: 5, CreatedAt: now, CompletionTarget: target(-time.Hour)},
			want: (100.0 * 10) / 5,
		},
		{
			name: "due within a day",
			item: domain.WorkItem{EffortPoints: 5, CreatedAt: now, CompletionTarget: target(12 * time.Hour)},
			want: (100.0 * 5) / 5,
		},
		{
			name: "due within three days",
			item: domain.WorkItem{EffortPoints: 5, CreatedAt: now, CompletionTarget: target(48 * time.Hour)},
			want: (100.0 * 2) / 5,
		},
		{
			name: "distant target decays",
			item: domain.WorkItem{EffortPoints: 5, CreatedAt: now, CompletionTarget: target(10 * 24 * time.Hour)},
			want: (100.0 / 10) / 5,
		},
		{
			name: "unestimated item uses medium job size",
			item: domain.WorkItem{EffortPoints: 0, CreatedAt: now, CompletionTarget: target(-time.Hour)},
			want: (100.0 * 10) / 5,
		},
		{
			name: "larger job size lowers score",
			item: domain.WorkItem{EffortPoints: 10, CreatedAt: now, CompletionTarget: target(-time.Hour)},
			want: (100.0 * 10) / 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WSJFStrategy{}.Score(&tt.item, cfg, now)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestWSJFUrgencyMonotonic(t *testing.T) {
	now := time.Now()
	cfg := config.DefaultTriageConfig()

	score := func(until time.Duration) float64 {
		ts := now.Add(until)
		return WSJFStrategy{}.Score(&domain.WorkItem{EffortPoints: 5, CreatedAt: now, CompletionTarget: &ts}, cfg, now)
	}

	breached := score(-time.Hour)
	oneDay := score(12 * time.Hour)
	threeDays := score(2 * 24 * time.Hour)
	distant := score(20 * 24 * time.Hour)

	assert.Greater(t, breached, oneDay)
	assert.Greater(t, oneDay, threeDays)
	assert.Greater(t, threeDays, distant)
}

func TestComputeScorePersists(t *testing.T) {
	now := time.Now()
	target := now.Add(-time.Hour)
	repo := newMemItemRepo(&domain.WorkItem{
		ID: "item-1", Status: domain.StatusPending, EffortPoints: 5,
		CreatedAt: now, CompletionTarget: &target,
	})
	svc := NewRankingService(repo, rankingRegistry(), zap.NewNop())
	svc.now = func() time.Time { return now }

	score, err := svc.ComputeScore(context.Background(), "item-1", config.DefaultTriageConfig())
	require.NoError(t, err)
	assert.InDelta(t, 200.0, score, 1e-9)
	assert.InDelta(t, 200.0, repo.get("item-1").PriorityScore, 1e-9)
}

func TestComputeScoreUnknownStrategy(t *testing.T) {
	repo := newMemItemRepo(&domain.WorkItem{ID: "item-1", Status: domain.StatusPending, CreatedAt: time.Now()})
	svc := NewRankingService(repo, rankingRegistry(), zap.NewNop())

	cfg := config.DefaultTriageConfig()
	cfg.Ranking.Strategy = "Bogus"

	_, err := svc.ComputeScore(context.Background(), "item-1", cfg)
	require.Error(t, err)
	domainErr := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFIGURATION_ERROR", domainErr.Code)
}

func TestGetPrioritizedIDsOrdering(t *testing.T) {
	now := time.Now()
	repo := newMemItemRepo(
		&domain.WorkItem{ID: "low", Status: domain.StatusPending, PriorityScore: 10, CreatedAt: now},
		&domain.WorkItem{ID: "high", Status: domain.StatusPending, PriorityScore: 90, CreatedAt: now},
		&domain.WorkItem{ID: "tie-newer", Status: domain.StatusPending, PriorityScore: 50, CreatedAt: now},
		&domain.WorkItem{ID: "tie-older", Status: domain.StatusPending, PriorityScore: 50, CreatedAt: now.Add(-time.Hour)},
		&domain.WorkItem{ID: "done", Status: domain.StatusCompleted, PriorityScore: 999, CreatedAt: now},
	)
	svc := NewRankingService(repo, rankingRegistry(), zap.NewNop())

	ids, err := svc.GetPrioritizedIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "tie-older", "tie-newer", "low"}, ids)
}

func TestRecalculateAllContinuesPastFailures(t *testing.T) {
	now := time.Now()
	repo := newMemItemRepo(
		&domain.WorkItem{ID: "a", Status: domain.StatusPending, EffortPoints: 5, CreatedAt: now.Add(-48 * time.Hour)},
		&domain.WorkItem{ID: "b", Status: domain.StatusPending, EffortPoints: 5, CreatedAt: now.Add(-48 * time.Hour)},
	)
	repo.failSaveID = "a"
	svc := NewRankingService(repo, rankingRegistry(), zap.NewNop())
	svc.now = func() time.Time { return now }

	processed, err := svc.RecalculateAll(context.Background(), config.DefaultTriageConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, processed, "the failing item is skipped, not fatal")
	assert.Greater(t, repo.get("b").PriorityScore, 0.0, "later items still get scored")
}
