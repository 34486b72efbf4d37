package domain

import "time"

// Agent is a support agent eligible for work item recommendations.
type Agent struct {
	ID              string
	Name            string
	Email           string
	Specializations []string
	Active          bool
	CreatedAt       time.Time
}
