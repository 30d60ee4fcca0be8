package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Secrets are never kept in the TOML file.
type Secrets struct {
	SentryDSN        string `env:"SENTRY_DSN"`
	RedisPassword    string `env:"TRACKER_REDIS_PASS"`
	PostgresPassword string `env:"TRACKER_POSTGRES_PASS"`
	HoneycombEnabled bool   `env:"HONEYCOMB_ENABLED,default=false"`
	HoneycombAPIKey  string `env:"HONEYCOMB_API_KEY"`
}

// LoadSecrets reads the secrets from the environment, after loading the optional dotenv files.
// Variables already set in the environment win over the dotenv ones.
func LoadSecrets(ctx context.Context, dotenvFiles ...string) (*Secrets, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load dotenv %s: %w", f, err)
		}
	}

	var s Secrets
	if err := envconfig.Process(ctx, &s); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	return &s, nil
}
