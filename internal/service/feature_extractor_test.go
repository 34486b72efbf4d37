package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
)

func TestExtractFeatures(t *testing.T) {
	extractor := NewFeatureExtractor(zap.NewNop())

	item := &domain.WorkItem{
		ID: "item-1",
		CustomFields: map[string]any{
			"severity": 7,
			"zone":     "Z1",
			"vip":      true,
			"count":    "12",
		},
	}

	schema := []config.FeatureDefinition{
		{Name: "severity_scaled", SourceField: "severity", Transformation: "min_max", Params: map[string]any{"min": 0, "max": 14}},
		{Name: "is_zone_z1", SourceField: "zone", Transformation: "one_hot", Params: map[string]any{"target_value": "z1"}},
		{Name: "is_zone_z2", SourceField: "zone", Transformation: "one_hot", Params: map[string]any{"target_value": "Z2"}},
		{Name: "is_vip", SourceField: "vip", Transformation: "bool"},
		{Name: "raw_count", SourceField: "count", Transformation: "none"},
		{Name: "missing_field", SourceField: "nope", Transformation: "min_max", Params: map[string]any{"min": 0, "max": 10}},
	}

	got := extractor.ExtractFeatures(item, schema)

	assert.Equal(t, []float64{0.5, 1, 0, 1, 12, 0}, got)
}

func TestExtractFeaturesMinMaxEdges(t *testing.T) {
	extractor := NewFeatureExtractor(zap.NewNop())

	tests := []struct {
		name   string
		value  any
		params map[string]any
		want   float64
	}{
		{"clamped below min", -5, map[string]any{"min": 0, "max": 10}, 0},
		{"clamped above max", 25, map[string]any{"min": 0, "max": 10}, 1},
		{"degenerate range", 3, map[string]any{"min": 4, "max": 4}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &domain.WorkItem{CustomFields: map[string]any{"f": tt.value}}
			schema := []config.FeatureDefinition{{Name: "f", SourceField: "f", Transformation: "min_max", Params: tt.params}}
			got := extractor.ExtractFeatures(item, schema)
			assert.Equal(t, []float64{tt.want}, got)
		})
	}
}
