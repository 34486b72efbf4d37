package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
)

func groupingConfig() *config.TriageConfig {
	cfg := config.DefaultTriageConfig()
	cfg.Grouping.TimeWindowMinutes = 60
	return cfg
}

func duplicateItems(now time.Time) []*domain.WorkItem {
	hash := ComputeContentHash("printer broken", "user-1")
	return []*domain.WorkItem{
		{ID: "old", RequesterID: "user-1", Description: "printer broken", Status: domain.StatusPending, ContentHash: hash, CreatedAt: now.Add(-30 * time.Minute)},
		{ID: "mid", RequesterID: "user-1", Description: "printer broken", Status: domain.StatusPending, ContentHash: hash, CreatedAt: now.Add(-20 * time.Minute)},
		{ID: "new", RequesterID: "user-1", Description: "printer broken", Status: domain.StatusPending, ContentHash: hash, CreatedAt: now.Add(-1 * time.Minute)},
	}
}

func TestCheckAndGroupPromotesOldest(t *testing.T) {
	now := time.Now()
	repo := newMemItemRepo(duplicateItems(now)...)
	svc := NewGroupingService(repo, zap.NewNop())
	svc.now = func() time.Time { return now }

	parentID, err := svc.CheckAndGroup(context.Background(), "new", groupingConfig())
	require.NoError(t, err)
	require.NotNil(t, parentID)
	assert.Equal(t, "old", *parentID)

	parent := repo.get("old")
	assert.True(t, parent.HasTag(domain.TagParentCluster))
	assert.Contains(t, parent.Description, "[GROUPED] ")

	child := repo.get("new")
	require.NotNil(t, child.ParentID)
	assert.Equal(t, "old", *child.ParentID)
	assert.True(t, child.HasTag(domain.TagSpamCluster))
}

func TestCheckAndGroupIsIdempotent(t *testing.T) {
	now := time.Now()
	repo := newMemItemRepo(duplicateItems(now)...)
	svc := NewGroupingService(repo, zap.NewNop())
	svc.now = func() time.Time { return now }
	cfg := groupingConfig()

	first, err := svc.CheckAndGroup(context.Background(), "new", cfg)
	require.NoError(t, err)
	second, err := svc.CheckAndGroup(context.Background(), "new", cfg)
	require.NoError(t, err)

	assert.Equal(t, *first, *second)

	parent := repo.get("old")
	assert.Equal(t, 1, strings.Count(parent.Description, "[GROUPED] "), "prefix must not stack on re-run")

	child := repo.get("new")
	tagCount := 0
	for _, tag := range child.Tags {
		if tag == domain.TagSpamCluster {
			tagCount++
		}
	}
	assert.Equal(t, 1, tagCount)
}

func TestCheckAndGroupReusesExistingParent(t *testing.T) {
	now := time.Now()
	items := duplicateItems(now)
	parentID := "old"
	items[1].ParentID = &parentID
	repo := newMemItemRepo(items...)
	svc := NewGroupingService(repo, zap.NewNop())
	svc.now = func() time.Time { return now }

	got, err := svc.CheckAndGroup(context.Background(), "new", groupingConfig())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "old", *got)
}

func TestCheckAndGroupFlagDoesNotLink(t *testing.T) {
	now := time.Now()
	repo := newMemItemRepo(duplicateItems(now)...)
	svc := NewGroupingService(repo, zap.NewNop())
	svc.now = func() time.Time { return now }

	cfg := groupingConfig()
	cfg.Grouping.Action = config.ActionFlag

	parentID, err := svc.CheckAndGroup(context.Background(), "new", cfg)
	require.NoError(t, err)
	require.NotNil(t, parentID)

	child := repo.get("new")
	assert.Nil(t, child.ParentID)
	assert.False(t, child.HasTag(domain.TagSpamCluster))
}

func TestCheckAndGroupRespectsWindowAndTerminalStatus(t *testing.T) {
	now := time.Now()
	items := duplicateItems(now)
	items[0].CreatedAt = now.Add(-2 * time.Hour)
	items[1].Status = domain.StatusCompleted
	repo := newMemItemRepo(items...)
	svc := NewGroupingService(repo, zap.NewNop())
	svc.now = func() time.Time { return now }

	parentID, err := svc.CheckAndGroup(context.Background(), "new", groupingConfig())
	require.NoError(t, err)
	assert.Nil(t, parentID, "stale and terminal items are not duplicate candidates")
}

func TestCheckAndGroupMissingItem(t *testing.T) {
	repo := newMemItemRepo()
	svc := NewGroupingService(repo, zap.NewNop())

	parentID, err := svc.CheckAndGroup(context.Background(), "ghost", groupingConfig())
	assert.NoError(t, err)
	assert.Nil(t, parentID)
}

func TestCheckAndGroupDisabled(t *testing.T) {
	now := time.Now()
	repo := newMemItemRepo(duplicateItems(now)...)
	svc := NewGroupingService(repo, zap.NewNop())
	svc.now = func() time.Time { return now }

	cfg := groupingConfig()
	cfg.Grouping.Enabled = false

	parentID, err := svc.CheckAndGroup(context.Background(), "new", cfg)
	require.NoError(t, err)
	assert.Nil(t, parentID)
	assert.Nil(t, repo.get("new").ParentID)
}
