// Package config reads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config carries the knobs the CLI needs. Flags may override individual
// fields after loading.
type Config struct {
	// DBPath is where the SQLite database lives.
	DBPath string `envconfig:"LIBRARY_DB" default:"library.db"`

	// LoanPeriodDays is the default loan length for manual borrows.
	LoanPeriodDays int `envconfig:"LIBRARY_LOAN_DAYS" default:"14"`

	// MaxErrorDisplay caps how many import errors are printed before the
	// remainder is summarized as a count.
	MaxErrorDisplay int `envconfig:"LIBRARY_MAX_ERRORS" default:"10"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
