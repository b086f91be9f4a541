// Package config holds the configuration of the hyperband command.
package config

import (
	"encoding/json"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/determined-ai/hyperband/internal/db"
	"github.com/determined-ai/hyperband/internal/trainer"
	"github.com/determined-ai/hyperband/pkg/check"
	"github.com/determined-ai/hyperband/pkg/logger"
	"github.com/determined-ai/hyperband/pkg/model"
)

// Result store backends.
const (
	MemoryStore   = "memory"
	PostgresStore = "postgres"
)

// MetricsConfig configures the metrics listener. A zero port disables it.
type MetricsConfig struct {
	Port int `json:"port"`
}

// Validate implements the check.Validatable interface.
func (m MetricsConfig) Validate() []error {
	return []error{
		check.GreaterThanOrEqualTo(m.Port, 0, "metrics port must be non-negative"),
		check.LessThanOrEqualTo(m.Port, 65535, "metrics port must be at most 65535"),
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log:        *logger.DefaultConfig(),
		DB:         *db.DefaultConfig(),
		Store:      MemoryStore,
		Hyperband:  model.DefaultHyperbandConfig(),
		Simulation: trainer.DefaultSimulationConfig(),
		Retry:      trainer.DefaultRetryConfig(),
	}
}

// Config is the configuration of a search run.
//
// It is populated, in the following order, by the configuration file, environment variables
// and command line arguments.
type Config struct {
	ConfigFile string                   `json:"config_file"`
	Log        logger.Config            `json:"log"`
	DB         db.Config                `json:"db"`
	Store      string                   `json:"store"`
	Hyperband  model.HyperbandConfig    `json:"hyperband"`
	Candidates string                   `json:"candidates"`
	RunName    string                   `json:"run_name"`
	Simulation trainer.SimulationConfig `json:"simulation"`
	Retry      trainer.RetryConfig      `json:"retry"`
	// TrainerTimeout bounds each trainer call; zero means no bound.
	TrainerTimeout model.Duration `json:"trainer_timeout"`
	Metrics        MetricsConfig  `json:"metrics"`
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	return []error{
		check.In(c.Store, []string{MemoryStore, PostgresStore}, "invalid result store"),
		check.GreaterThanOrEqualTo(c.TrainerTimeout, 0, "trainer_timeout must be non-negative"),
		check.GreaterThanOrEqualTo(c.Simulation.MetricPeriod, 0,
			"simulation metric_period must be non-negative"),
	}
}

// Resolve resolves the values in the configuration.
func (c *Config) Resolve() error {
	if c.Candidates != "" {
		path, err := filepath.Abs(c.Candidates)
		if err != nil {
			return errors.Wrap(err, "resolving candidates path")
		}
		c.Candidates = path
	}
	return nil
}

// Printable returns the configuration as JSON with secrets hidden.
func (c Config) Printable() ([]byte, error) {
	c.DB = c.DB.Printable()
	bs, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return bs, nil
}
