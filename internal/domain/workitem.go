package domain

import (
	"strings"
	"time"
)

// WorkItemStatus enumerates lifecycle states for work items.
type WorkItemStatus string

const (
	StatusPending    WorkItemStatus = "PENDING"
	StatusRejected   WorkItemStatus = "REJECTED"
	StatusAssigned   WorkItemStatus = "ASSIGNED"
	StatusInProgress WorkItemStatus = "IN_PROGRESS"
	StatusCompleted  WorkItemStatus = "COMPLETED"
	StatusFailed     WorkItemStatus = "FAILED"
	StatusCancelled  WorkItemStatus = "CANCELLED"
)

// Terminal reports whether the status excludes the item from triage.
func (s WorkItemStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// WorkItem is the aggregate for incoming helpdesk work.
//
// EffortPoints, PriorityScore, Tags, ParentID and ContentHash are written by
// the triage pipeline; everything else is owned by the surrounding platform.
type WorkItem struct {
	ID               string
	RequesterID      string
	AssigneeID       *string
	Description      string
	Status           WorkItemStatus
	EffortPoints     int
	PriorityScore    float64
	Tags             []string
	ParentID         *string
	ContentHash      string
	CompletionTarget *time.Time
	CustomFields     map[string]any
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TagCategory returns the category prefix of a tag ("Category:Hardware" ->
// "Category"). Tags without a colon are their own category.
func TagCategory(tag string) string {
	if idx := strings.Index(tag, ":"); idx > 0 {
		return tag[:idx]
	}
	return tag
}

// HasTag reports whether the exact tag is present.
func (w *WorkItem) HasTag(tag string) bool {
	for _, t := range w.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// SetTag appends the tag, replacing any existing tag of the same category
// prefix so re-running a stage never duplicates its label.
func (w *WorkItem) SetTag(tag string) {
	category := TagCategory(tag)
	for i, t := range w.Tags {
		if strings.EqualFold(TagCategory(t), category) {
			w.Tags[i] = tag
			return
		}
	}
	w.Tags = append(w.Tags, tag)
}

// Age returns the item age relative to now.
func (w *WorkItem) Age(now time.Time) time.Duration {
	return now.Sub(w.CreatedAt)
}
