package events

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventItemGrouped      EventType = "item_grouped"
	EventItemEstimated    EventType = "item_estimated"
	EventItemRanked       EventType = "item_ranked"
	EventAgentRecommended EventType = "agent_recommended"
	EventCapacityRisk     EventType = "capacity_risk"
)

// Event represents a triage pipeline event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ItemID    string      `json:"item_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ItemGroupedPayload payload.
type ItemGroupedPayload struct {
	ParentID string `json:"parent_id"`
	Action   string `json:"action"`
}

// ItemEstimatedPayload payload.
type ItemEstimatedPayload struct {
	EffortPoints int `json:"effort_points"`
}

// ItemRankedPayload payload.
type ItemRankedPayload struct {
	PriorityScore float64 `json:"priority_score"`
	Strategy      string  `json:"strategy"`
}

// AgentRecommendedPayload payload.
type AgentRecommendedPayload struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	AutoDispatched  bool                    `json:"auto_dispatched"`
}

// CapacityRiskPayload payload.
type CapacityRiskPayload struct {
	FirstBreach       time.Time `json:"first_breach"`
	ForecastedInflow  int       `json:"forecasted_inflow"`
	AvailableCapacity float64   `json:"available_capacity"`
	RiskPercent       float64   `json:"risk_percent"`
	Message           string    `json:"message"`
}
