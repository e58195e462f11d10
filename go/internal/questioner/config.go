package questioner

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/contest/go/internal/engine"
)

type TargetPolicy string

const (
	// TargetFixed always hides Config.Target.
	TargetFixed TargetPolicy = "fixed"
	// TargetRandom hides a fresh uniform pick from [Minimum, Maximum] every game.
	TargetRandom TargetPolicy = "random"
)

// Config describes one judge.
type Config struct {
	Name          string        `yaml:"name"`
	Minimum       int           `yaml:"minimum"`
	Maximum       int           `yaml:"maximum"`
	Target        int           `yaml:"target"`
	TargetPolicy  TargetPolicy  `yaml:"target_policy"`
	MaxGuesses    int           `yaml:"max_guesses"`
	TurnTimeout   time.Duration `yaml:"turn_timeout"`
	ReportTimeout time.Duration `yaml:"report_timeout"`
	Workers       int           `yaml:"workers"`
}

// DefaultConfig is the easy questioner.
func DefaultConfig() Config {
	return Config{
		Name:          "easy-questioner",
		Minimum:       1,
		Maximum:       10,
		Target:        7,
		TargetPolicy:  TargetFixed,
		MaxGuesses:    20,
		TurnTimeout:   10 * time.Second,
		ReportTimeout: 10 * time.Second,
		Workers:       4,
	}
}

func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.TargetPolicy {
	case TargetFixed:
	case TargetRandom:
		// Target is picked per game; only the range has to be sound.
		c.Target = c.Minimum
		if c.Minimum <= c.Maximum && c.Maximum-c.Minimum+1 <= 0 {
			return fmt.Errorf("range [%d, %d] is too wide for a random target", c.Minimum, c.Maximum)
		}
	default:
		return fmt.Errorf("unknown target_policy %q", c.TargetPolicy)
	}
	if err := c.engineConfig(c.Target).Validate(); err != nil {
		return err
	}
	if c.TurnTimeout <= 0 || c.ReportTimeout <= 0 {
		return fmt.Errorf("turn_timeout and report_timeout must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// GameBudget is the longest a single game can take before its report.
func (c Config) GameBudget() time.Duration {
	return time.Duration(c.MaxGuesses)*c.TurnTimeout + c.ReportTimeout
}

func (c Config) engineConfig(target int) engine.Config {
	return engine.Config{
		Minimum:    c.Minimum,
		Maximum:    c.Maximum,
		Target:     target,
		MaxGuesses: c.MaxGuesses,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig, so a file only needs
// the fields it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid questioner config %s: %w", path, err)
	}
	return cfg, nil
}
