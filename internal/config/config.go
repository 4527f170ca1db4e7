// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

const Prefix = "ARCADE_"

// Ledger backends.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Ledger         string `env:"LEDGER" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	OpeningBalance int64  `env:"OPENING_BALANCE" envDefault:"1000"`

	SpinInactivity time.Duration `env:"SPIN_INACTIVITY" envDefault:"2m"`
	TurnTimeout    time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`
	ChallengeTTL   time.Duration `env:"CHALLENGE_TTL" envDefault:"2m"`
	WordMaxWrong   int           `env:"WORD_MAX_WRONG" envDefault:"7"`
	DuelReward     int64         `env:"DUEL_REWARD" envDefault:"0"`
	WordReward     int64         `env:"WORD_REWARD" envDefault:"0"`

	IdleTimeout   time.Duration `env:"IDLE_TIMEOUT" envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	CatalogPath  string `env:"CATALOG_PATH"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads the given .env files, when present, then parses the ARCADE_
// environment. Variables already set in the environment win over .env files.
func Load(dotenv ...string) (Config, error) {
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var err error
	positive := map[string]time.Duration{
		"SPIN_INACTIVITY": c.SpinInactivity,
		"TURN_TIMEOUT":    c.TurnTimeout,
		"CHALLENGE_TTL":   c.ChallengeTTL,
		"IDLE_TIMEOUT":    c.IdleTimeout,
		"SWEEP_INTERVAL":  c.SweepInterval,
	}
	for key, d := range positive {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s%s must be positive, got %s", Prefix, key, d))
		}
	}
	if c.WordMaxWrong <= 0 {
		err = multierr.Append(err, fmt.Errorf("%sWORD_MAX_WRONG must be positive, got %d", Prefix, c.WordMaxWrong))
	}
	if c.OpeningBalance < 0 || c.DuelReward < 0 || c.WordReward < 0 {
		err = multierr.Append(err, errors.New("balances and rewards cannot be negative"))
	}
	switch c.Ledger {
	case LedgerMemory, LedgerRedis:
	case LedgerPostgres:
		if c.DatabaseURL == "" {
			err = multierr.Append(err, fmt.Errorf("%sDATABASE_URL is required for the postgres ledger", Prefix))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown ledger backend %q", c.Ledger))
	}
	return err
}
