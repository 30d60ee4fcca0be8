package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

const (
	StorageLocal  = "local"
	StorageRemote = "remote"

	LocalKVSqlite = "sqlite"
	LocalKVRedis  = "redis"
	LocalKVMemory = "memory"

	DefaultSessionTTL = 24 * 7 * time.Hour
)

type User struct {
	ID         string `toml:"id"`
	Name       string `toml:"name"`
	AccessCode string `toml:"access_code"`
}

type Config struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Environment string `toml:"environment"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// persistence
	Storage    string `toml:"storage"`
	LocalKV    string `toml:"local_kv"`
	SqlitePath string `toml:"sqlite_path"`
	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`
	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	// auth
	LoginRateLimitAllowedPerMin int           `toml:"login_rate_limit_allowed_per_min"`
	SessionTTL                  time.Duration `toml:"session_ttl"`
	// calendar date rollover happens at midnight in this IANA zone
	Timezone string `toml:"timezone"`
	// users with static access codes, used with local storage
	Users []User `toml:"users"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("env [%s] not configured", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path and returns the validated config of the given env.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return fromToml(&t, env)
}

// Parse is like Load, for an in memory TOML document.
func Parse(env, data string) (*Config, error) {
	var t Toml
	if _, err := toml.Decode(data, &t); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return fromToml(&t, env)
}

func fromToml(t *Toml, env string) (*Config, error) {
	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid [%s] config: %w", env, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage == "" {
		c.Storage = StorageLocal
	}
	if c.LocalKV == "" {
		c.LocalKV = LocalKVSqlite
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
}

// Validate reports all problems at once.
func (c *Config) Validate() error {
	var err error
	if c.Port <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid port: %d", c.Port))
	}
	if _, locErr := time.LoadLocation(c.Timezone); locErr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid timezone %q: %w", c.Timezone, locErr))
	}
	if c.SessionTTL < 0 {
		err = multierr.Append(err, errors.New("session ttl must not be negative"))
	}
	if c.RedisHost == "" {
		// sessions and login throttling always live in redis
		err = multierr.Append(err, errors.New("redis host not set"))
	}

	switch c.Storage {
	case StorageRemote:
		if c.PostgresHost == "" || c.PostgresDBName == "" {
			err = multierr.Append(err, errors.New("remote storage requires postgres host and db name"))
		}
	case StorageLocal:
		switch c.LocalKV {
		case LocalKVSqlite:
			if c.SqlitePath == "" {
				err = multierr.Append(err, errors.New("sqlite local kv requires sqlite_path"))
			}
		case LocalKVRedis, LocalKVMemory:
		default:
			err = multierr.Append(err, fmt.Errorf("unknown local kv: %s", c.LocalKV))
		}
		err = multierr.Append(err, validateUsers(c.Users))
	default:
		err = multierr.Append(err, fmt.Errorf("unknown storage: %s", c.Storage))
	}

	return err
}

func validateUsers(users []User) error {
	var err error
	ids := map[string]bool{}
	codes := map[string]bool{}
	for i, u := range users {
		code := strings.TrimSpace(u.AccessCode)
		if u.ID == "" || code == "" {
			err = multierr.Append(err, fmt.Errorf("user #%d: id and access code required", i))
			continue
		}
		if ids[u.ID] {
			err = multierr.Append(err, fmt.Errorf("user #%d: duplicate id %s", i, u.ID))
		}
		if codes[code] {
			err = multierr.Append(err, fmt.Errorf("user #%d: duplicate access code", i))
		}
		ids[u.ID] = true
		codes[code] = true
	}
	return err
}
