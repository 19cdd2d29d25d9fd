// Package config loads and validates the fuzzer's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete campaign configuration.
type Config struct {
	Target   TargetConfig   `yaml:"target"`
	Training TrainingConfig `yaml:"training"`
	Rewards  RewardsConfig  `yaml:"rewards"`
	Findings FindingsConfig `yaml:"findings"`
}

// TargetConfig selects the protocols to fuzz and where their devices live.
type TargetConfig struct {
	IP        string           `yaml:"ip"`
	Protocols []ProtocolTarget `yaml:"protocols"`
	// Simulate runs against the in-process device model instead of the
	// network; the default when no IP is configured.
	Simulate bool `yaml:"simulate"`
}

// ProtocolTarget names one enabled protocol and its transport settings.
type ProtocolTarget struct {
	Name    string `yaml:"name"`
	Port    int    `yaml:"port"`
	Timeout string `yaml:"timeout"`

	TimeoutDuration time.Duration `yaml:"-"`
}

// TrainingConfig tunes the training loop and replay storage.
type TrainingConfig struct {
	Episodes            int     `yaml:"episodes"`
	MaxSteps            int     `yaml:"max_steps"`
	BatchSize           int     `yaml:"batch_size"`
	BufferSize          int     `yaml:"buffer_size"`
	UpdateEvery         int     `yaml:"update_every"`
	LearningRate        float64 `yaml:"learning_rate"`
	PrioritizedReplay   bool    `yaml:"prioritized_replay"`
	Alpha               float64 `yaml:"alpha"`
	Beta                float64 `yaml:"beta"`
	TrainCritic         bool    `yaml:"train_critic"`
	EarlyStoppingWindow int     `yaml:"early_stopping_window"`
}

// RewardsConfig holds the severity score table and the objective weights.
type RewardsConfig struct {
	Weights             map[string]float64 `yaml:"weights"`
	VulnerabilityScores map[string]float64 `yaml:"vulnerability_scores"`
}

// FindingsConfig points at the findings database.
type FindingsConfig struct {
	Path string `yaml:"path"`
}

// Default returns a runnable configuration: the three built-in protocols in
// simulation mode with the published reward shaping.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			IP:       "127.0.0.1",
			Simulate: true,
			Protocols: []ProtocolTarget{
				{Name: "modbus_tcp", Port: 502, Timeout: "5s"},
				{Name: "ethernet_ip", Port: 44818, Timeout: "5s"},
				{Name: "siemens_s7", Port: 102, Timeout: "5s"},
			},
		},
		Training: TrainingConfig{
			Episodes:            100,
			MaxSteps:            1000,
			BatchSize:           32,
			BufferSize:          10000,
			UpdateEvery:         10,
			LearningRate:        0.01,
			Alpha:               0.6,
			Beta:                0.4,
			EarlyStoppingWindow: 20,
		},
		Rewards: RewardsConfig{
			Weights: map[string]float64{
				"vulnerability": 0.5,
				"depth":         0.25,
				"diversity":     0.25,
			},
			VulnerabilityScores: map[string]float64{
				"critical": 4.0,
				"major":    3.0,
				"minor":    2.0,
				"general":  1.0,
				"none":     0.0,
			},
		},
		Findings: FindingsConfig{Path: "findings.db"},
	}
}

// Load reads a YAML config file, fills defaults for omitted sections and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency and resolves timeout strings.
func (c *Config) Validate() error {
	if len(c.Target.Protocols) == 0 {
		return fmt.Errorf("no protocols configured")
	}
	seen := make(map[string]struct{}, len(c.Target.Protocols))
	for i := range c.Target.Protocols {
		p := &c.Target.Protocols[i]
		if p.Name == "" {
			return fmt.Errorf("protocol %d has no name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("protocol %q configured twice", p.Name)
		}
		seen[p.Name] = struct{}{}

		if p.Timeout == "" {
			p.TimeoutDuration = 5 * time.Second
			continue
		}
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("protocol %q: invalid timeout %q: %w", p.Name, p.Timeout, err)
		}
		p.TimeoutDuration = d
	}

	for name, w := range c.Rewards.Weights {
		if w < 0 {
			return fmt.Errorf("reward weight %q is negative", name)
		}
	}
	if c.Training.Episodes < 0 || c.Training.MaxSteps < 0 {
		return fmt.Errorf("training episodes and max_steps must not be negative")
	}
	return nil
}
