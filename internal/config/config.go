package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level pipeline.yaml configuration.
type Config struct {
	DBPath   string         `yaml:"db_path"`
	Sources  []SourceConfig `yaml:"sources"`
	Merge    MergeConfig    `yaml:"merge"`
	Features FeatureConfig  `yaml:"features"`
	Balancer BalancerConfig `yaml:"balancer"`
	Training TrainingConfig `yaml:"training"`
}

// SourceConfig declares one raw input file.
type SourceConfig struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`   // transactions | devices | customers
	Format string `yaml:"format"` // csv | psv | json
	Path   string `yaml:"path"`
}

// MergeConfig controls how the merger treats incomplete rows.
type MergeConfig struct {
	// DropMissingCustomer drops merged rows that have no customer record
	// instead of keeping them with a nil customer.
	DropMissingCustomer bool `yaml:"drop_missing_customer"`
	// FillUnknown replaces empty sparse contact fields (email, phone,
	// browser) with "Unknown".
	FillUnknown bool `yaml:"fill_unknown"`
}

// FeatureConfig controls feature engineering.
type FeatureConfig struct {
	// WindowHours bounds the look-back window for per-account aggregates.
	WindowHours int `yaml:"window_hours"`
	// MinHistory is the minimum number of prior records an account needs
	// before windowed features are considered reliable.
	MinHistory int `yaml:"min_history"`
	// HistoryPolicy is "sentinel" (impute windowed features with Sentinel)
	// or "drop" (discard the record).
	HistoryPolicy string `yaml:"history_policy"`
	Sentinel      float64 `yaml:"sentinel"`
	// Workers is the number of goroutines computing features across
	// account partitions. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// BalancerConfig controls synthetic minority oversampling.
type BalancerConfig struct {
	// TargetRatio is the desired minority:majority ratio after balancing,
	// e.g. 1.0 for 50:50.
	TargetRatio float64 `yaml:"target_ratio"`
	// Neighbors is the k used for nearest-neighbour interpolation.
	Neighbors int   `yaml:"neighbors"`
	Seed      int64 `yaml:"seed"`
}

// TrainingConfig controls model fitting and evaluation.
type TrainingConfig struct {
	// EvalFraction is the share of the dataset held out for evaluation.
	EvalFraction float64 `yaml:"eval_fraction"`
	// Folds is the number of cross-validation folds over the training
	// partition. Zero disables cross-validation.
	Folds        int     `yaml:"folds"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	L2           float64 `yaml:"l2"`
	// Threshold is the probability cutoff for the positive class.
	Threshold float64 `yaml:"threshold"`
	Seed      int64   `yaml:"seed"`
}

const (
	PolicySentinel = "sentinel"
	PolicyDrop     = "drop"
)

// Default returns a Config with working defaults for a local run.
func Default() *Config {
	return &Config{
		DBPath: "fraudpipe.db",
		Merge: MergeConfig{
			DropMissingCustomer: true,
			FillUnknown:         true,
		},
		Features: FeatureConfig{
			WindowHours:   168,
			MinHistory:    3,
			HistoryPolicy: PolicySentinel,
			Sentinel:      -1,
		},
		Balancer: BalancerConfig{
			TargetRatio: 1.0,
			Neighbors:   5,
			Seed:        42,
		},
		Training: TrainingConfig{
			EvalFraction: 0.2,
			Folds:        5,
			Epochs:       200,
			BatchSize:    64,
			LearningRate: 0.05,
			L2:           0.001,
			Threshold:    0.5,
			Seed:         42,
		},
	}
}

// Load reads a pipeline.yaml file from disk and applies defaults to any
// zero-valued sections.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source is required")
	}
	hasTxn := false
	for i, s := range c.Sources {
		switch s.Kind {
		case "transactions":
			hasTxn = true
		case "devices", "customers":
		default:
			return fmt.Errorf("config: source %d: unknown kind %q", i, s.Kind)
		}
		if s.Name == "" || s.Path == "" {
			return fmt.Errorf("config: source %d: name and path are required", i)
		}
	}
	if !hasTxn {
		return fmt.Errorf("config: at least one transactions source is required")
	}
	if c.Features.HistoryPolicy != PolicySentinel && c.Features.HistoryPolicy != PolicyDrop {
		return fmt.Errorf("config: features.history_policy must be %q or %q", PolicySentinel, PolicyDrop)
	}
	if c.Features.WindowHours <= 0 {
		return fmt.Errorf("config: features.window_hours must be positive")
	}
	if c.Balancer.TargetRatio <= 0 || c.Balancer.TargetRatio > 1 {
		return fmt.Errorf("config: balancer.target_ratio must be in (0, 1]")
	}
	if c.Balancer.Neighbors < 1 {
		return fmt.Errorf("config: balancer.neighbors must be at least 1")
	}
	if c.Training.EvalFraction <= 0 || c.Training.EvalFraction >= 1 {
		return fmt.Errorf("config: training.eval_fraction must be in (0, 1)")
	}
	if c.Training.Threshold <= 0 || c.Training.Threshold >= 1 {
		return fmt.Errorf("config: training.threshold must be in (0, 1)")
	}
	return nil
}
