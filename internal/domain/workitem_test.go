package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetTagReplacesSameCategory(t *testing.T) {
	item := &WorkItem{}

	item.SetTag("Category:Hardware Request")
	item.SetTag("Category:Software Bug")
	item.SetTag(TagSpamCluster)
	item.SetTag(TagSpamCluster)

	assert.Equal(t, []string{"Category:Software Bug", TagSpamCluster}, item.Tags)
	assert.True(t, item.HasTag("Category:Software Bug"))
	assert.False(t, item.HasTag("Category:Hardware Request"))
}

func TestTagCategory(t *testing.T) {
	assert.Equal(t, "Category", TagCategory("Category:Hardware Request"))
	assert.Equal(t, TagSpamCluster, TagCategory(TagSpamCluster))
	assert.Equal(t, ":weird", TagCategory(":weird"))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusCancelled.Terminal())
	assert.False(t, StatusRejected.Terminal())
}
