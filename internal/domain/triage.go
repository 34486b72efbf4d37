package domain

import "time"

// Well-known triage tags.
const (
	TagParentCluster = "Parent-Cluster"
	TagSpamCluster   = "Spam-Cluster"
	TagAutoDispatch  = "AI-Dispatched"
	TagCategoryName  = "Category"
)

// Recommendation pairs a candidate agent with its affinity score.
type Recommendation struct {
	AgentID string  `json:"agent_id"`
	Score   float64 `json:"score"`
}

// InflowPoint is one day of (forecasted or historical) work item inflow.
type InflowPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// CapacityRisk describes a forecasted inflow-over-capacity situation.
type CapacityRisk struct {
	FirstBreach       time.Time `json:"first_breach"`
	ForecastedInflow  int       `json:"forecasted_inflow"`
	AvailableCapacity float64   `json:"available_capacity"`
	RiskPercent       float64   `json:"risk_percent"`
	Message           string    `json:"message"`
}
