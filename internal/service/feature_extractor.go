package service

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
)

// FeatureExtractor turns a work item's custom field bag into a fixed-order
// numeric vector per a declarative feature schema.
type FeatureExtractor struct {
	logger *zap.Logger
}

// NewFeatureExtractor creates the extractor.
func NewFeatureExtractor(logger *zap.Logger) *FeatureExtractor {
	return &FeatureExtractor{logger: logger}
}

// ExtractFeatures produces one value per schema entry, in schema order. A
// failure on a single feature logs and yields 0.0; extraction never aborts
// for one bad field.
func (e *FeatureExtractor) ExtractFeatures(item *domain.WorkItem, schema []config.FeatureDefinition) []float64 {
	features := make([]float64, 0, len(schema))
	for _, def := range schema {
		value, err := e.extractOne(item, def)
		if err != nil {
			e.logger.Warn("feature extraction failed",
				zap.String("feature", def.Name),
				zap.String("item_id", item.ID),
				zap.Error(err))
			value = 0
		}
		features = append(features, value)
	}
	return features
}

func (e *FeatureExtractor) extractOne(item *domain.WorkItem, def config.FeatureDefinition) (float64, error) {
	raw := item.CustomFields[def.SourceField]
	rawNumber, numeric := toNumber(raw)
	rawString := toString(raw)

	switch strings.ToLower(def.Transformation) {
	case "min_max":
		return applyMinMax(def, rawNumber)
	case "one_hot":
		return applyOneHot(def, rawString), nil
	case "bool":
		return applyBool(raw, rawString), nil
	default:
		// Raw numeric pass-through.
		if !numeric {
			return 0, nil
		}
		return rawNumber, nil
	}
}

func applyMinMax(def config.FeatureDefinition, value float64) (float64, error) {
	min, okMin := toNumber(def.Params["min"])
	max, okMax := toNumber(def.Params["max"])
	if !okMin || !okMax {
		return value, nil
	}
	if max == min {
		return 0, nil
	}
	if value < min {
		value = min
	}
	if value > max {
		value = max
	}
	return (value - min) / (max - min), nil
}

func applyOneHot(def config.FeatureDefinition, value string) float64 {
	target := toString(def.Params["target_value"])
	if target == "" {
		return 0
	}
	if strings.EqualFold(target, value) {
		return 1
	}
	return 0
}

func applyBool(raw any, value string) float64 {
	if b, ok := raw.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil || !parsed {
		return 0
	}
	return 1
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return strings.TrimSpace(strconv.FormatFloat(floatOrZero(v), 'f', -1, 64))
	}
}

func floatOrZero(v any) float64 {
	n, _ := toNumber(v)
	return n
}
