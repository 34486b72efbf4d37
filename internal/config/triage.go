package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Grouping actions.
const (
	ActionAutoMerge = "AutoMerge"
	ActionFlag      = "Flag"
)

// TriageConfig is the versioned configuration tree for the triage pipeline.
// It is read-only at pipeline-run time; stages receive a snapshot and must
// not mutate it.
type TriageConfig struct {
	Version      string                         `yaml:"version"`
	Enabled      bool                           `yaml:"enabled"`
	Grouping     GroupingSettings               `yaml:"grouping"`
	Estimating   EstimatingSettings             `yaml:"estimating"`
	Ranking      RankingSettings                `yaml:"ranking"`
	Dispatching  DispatchingSettings            `yaml:"dispatching"`
	Anticipation AnticipationSettings           `yaml:"anticipation"`
	Features     map[string][]FeatureDefinition `yaml:"feature_schemas"`
}

// GroupingSettings controls duplicate detection and clustering.
//
// MaxItemsPerRequester is a retained legacy knob from the count-threshold
// generation of this feature; the content-hash path is authoritative and the
// field is parsed but not consulted.
type GroupingSettings struct {
	Enabled              bool   `yaml:"enabled"`
	TimeWindowMinutes    int    `yaml:"time_window_minutes"`
	MaxItemsPerRequester int    `yaml:"max_items_per_requester"`
	Action               string `yaml:"action"`
	GroupedItemPrefix    string `yaml:"grouped_item_prefix"`
}

// TimeWindow returns the trailing duplicate-detection window.
func (g GroupingSettings) TimeWindow() time.Duration {
	return time.Duration(g.TimeWindowMinutes) * time.Minute
}

// CategoryEffort maps one category name to its effort points.
type CategoryEffort struct {
	Category string `yaml:"category"`
	Points   int    `yaml:"points"`
}

// EstimatingSettings controls effort estimation.
type EstimatingSettings struct {
	Enabled           bool             `yaml:"enabled"`
	CategoryEffortMap []CategoryEffort `yaml:"category_effort_map"`
	DefaultPoints     int              `yaml:"default_points"`
}

// RankingSettings controls WSJF priority scoring.
type RankingSettings struct {
	Enabled                       bool    `yaml:"enabled"`
	Strategy                      string  `yaml:"strategy"`
	SlaWeight                     float64 `yaml:"sla_weight"`
	ComplexityWeight              float64 `yaml:"complexity_weight"`
	RecalculationFrequencyMinutes int     `yaml:"recalculation_frequency_minutes"`
}

// DispatchingSettings controls agent recommendation policy.
type DispatchingSettings struct {
	Enabled               bool `yaml:"enabled"`
	MinHistoryForAffinity int  `yaml:"min_history_for_affinity"`
	MaxAssignedPerAgent   int  `yaml:"max_assigned_per_agent"`
	RetrainFrequencyHours int  `yaml:"retrain_frequency_hours"`
	RecommendationTopK    int  `yaml:"recommendation_top_k"`
	AutoDispatch          bool `yaml:"auto_dispatch"`
}

// AnticipationSettings controls inflow-vs-capacity forecasting policy.
type AnticipationSettings struct {
	Enabled              bool    `yaml:"enabled"`
	ForecastHorizonDays  int     `yaml:"forecast_horizon_days"`
	InflowHistoryYears   int     `yaml:"inflow_history_years"`
	MinHistoryDays       int     `yaml:"min_history_days"`
	CapacityRefreshHours int     `yaml:"capacity_refresh_hours"`
	RiskThresholdPercent float64 `yaml:"risk_threshold_percent"`
}

// FeatureDefinition declares one entry of a feature schema.
type FeatureDefinition struct {
	Name           string         `yaml:"name"`
	SourceField    string         `yaml:"source_field"`
	Transformation string         `yaml:"transformation"`
	Params         map[string]any `yaml:"params"`
}

// DefaultTriageConfig returns the configuration used when no file is present.
func DefaultTriageConfig() *TriageConfig {
	return &TriageConfig{
		Version: "1",
		Enabled: true,
		Grouping: GroupingSettings{
			Enabled:              true,
			TimeWindowMinutes:    60,
			MaxItemsPerRequester: 5,
			Action:               ActionAutoMerge,
			GroupedItemPrefix:    "[GROUPED] ",
		},
		Estimating: EstimatingSettings{
			Enabled:       true,
			DefaultPoints: 5,
		},
		Ranking: RankingSettings{
			Enabled:                       true,
			Strategy:                      "WSJF",
			SlaWeight:                     100,
			ComplexityWeight:              1,
			RecalculationFrequencyMinutes: 360,
		},
		Dispatching: DispatchingSettings{
			Enabled:               true,
			MinHistoryForAffinity: 3,
			MaxAssignedPerAgent:   15,
			RetrainFrequencyHours: 24,
			RecommendationTopK:    3,
		},
		Anticipation: AnticipationSettings{
			Enabled:              true,
			ForecastHorizonDays:  30,
			InflowHistoryYears:   3,
			MinHistoryDays:       90,
			CapacityRefreshHours: 12,
			RiskThresholdPercent: 20,
		},
	}
}

// LoadTriageConfig reads and validates the triage configuration tree from
// path. A missing file yields the defaults.
func LoadTriageConfig(path string) (*TriageConfig, error) {
	cfg := DefaultTriageConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read triage config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse triage config: %w", err)
	}
	applyTriageDefaults(cfg)
	if err := validateTriageConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyTriageDefaults(cfg *TriageConfig) {
	if cfg.Grouping.TimeWindowMinutes <= 0 {
		cfg.Grouping.TimeWindowMinutes = 60
	}
	if cfg.Grouping.Action == "" {
		cfg.Grouping.Action = ActionAutoMerge
	}
	if cfg.Grouping.GroupedItemPrefix == "" {
		cfg.Grouping.GroupedItemPrefix = "[GROUPED] "
	}
	if cfg.Estimating.DefaultPoints <= 0 {
		cfg.Estimating.DefaultPoints = 5
	}
	if cfg.Ranking.Strategy == "" {
		cfg.Ranking.Strategy = "WSJF"
	}
	if cfg.Ranking.SlaWeight <= 0 {
		cfg.Ranking.SlaWeight = 100
	}
	if cfg.Ranking.RecalculationFrequencyMinutes <= 0 {
		cfg.Ranking.RecalculationFrequencyMinutes = 360
	}
	if cfg.Dispatching.MaxAssignedPerAgent <= 0 {
		cfg.Dispatching.MaxAssignedPerAgent = 15
	}
	if cfg.Dispatching.RetrainFrequencyHours <= 0 {
		cfg.Dispatching.RetrainFrequencyHours = 24
	}
	if cfg.Dispatching.RecommendationTopK <= 0 {
		cfg.Dispatching.RecommendationTopK = 3
	}
	if cfg.Anticipation.ForecastHorizonDays <= 0 {
		cfg.Anticipation.ForecastHorizonDays = 30
	}
	if cfg.Anticipation.MinHistoryDays <= 0 {
		cfg.Anticipation.MinHistoryDays = 90
	}
	if cfg.Anticipation.CapacityRefreshHours <= 0 {
		cfg.Anticipation.CapacityRefreshHours = 12
	}
	if cfg.Anticipation.RiskThresholdPercent <= 0 {
		cfg.Anticipation.RiskThresholdPercent = 20
	}
}

func validateTriageConfig(cfg *TriageConfig) error {
	if cfg.Grouping.Action != ActionAutoMerge && cfg.Grouping.Action != ActionFlag {
		return fmt.Errorf("triage config: unknown grouping action %q", cfg.Grouping.Action)
	}
	for domainID, schema := range cfg.Features {
		for _, def := range schema {
			if def.Name == "" || def.SourceField == "" {
				return fmt.Errorf("triage config: feature schema %q has entry without name or source_field", domainID)
			}
		}
	}
	return nil
}

// Clone returns a deep copy so a pipeline run can hold an immutable snapshot.
func (c *TriageConfig) Clone() *TriageConfig {
	out := *c
	out.Estimating.CategoryEffortMap = append([]CategoryEffort(nil), c.Estimating.CategoryEffortMap...)
	if c.Features != nil {
		out.Features = make(map[string][]FeatureDefinition, len(c.Features))
		for k, defs := range c.Features {
			cloned := make([]FeatureDefinition, len(defs))
			for i, def := range defs {
				cloned[i] = def
				if def.Params != nil {
					params := make(map[string]any, len(def.Params))
					for pk, pv := range def.Params {
						params[pk] = pv
					}
					cloned[i].Params = params
				}
			}
			out.Features[k] = cloned
		}
	}
	return &out
}

// TriageConfigProvider hands out immutable snapshots of the triage tree and
// supports reloading between pipeline runs.
type TriageConfigProvider struct {
	mu   sync.RWMutex
	path string
	cur  *TriageConfig
}

// NewTriageConfigProvider loads the initial tree from path.
func NewTriageConfigProvider(path string) (*TriageConfigProvider, error) {
	cfg, err := LoadTriageConfig(path)
	if err != nil {
		return nil, err
	}
	return &TriageConfigProvider{path: path, cur: cfg}, nil
}

// NewStaticTriageConfigProvider wraps a fixed tree, used by tests.
func NewStaticTriageConfigProvider(cfg *TriageConfig) *TriageConfigProvider {
	return &TriageConfigProvider{cur: cfg}
}

// Snapshot returns a deep copy of the current tree.
func (p *TriageConfigProvider) Snapshot() *TriageConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur.Clone()
}

// Reload re-reads the tree from disk. The previous tree stays active on error.
func (p *TriageConfigProvider) Reload() error {
	if p.path == "" {
		return nil
	}
	cfg, err := LoadTriageConfig(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cur = cfg
	p.mu.Unlock()
	return nil
}
