package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "clipforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CLIPFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "CLIPFORGE_CORS_ORIGIN")
	setString(&cfg.Project.ID, "CLIPFORGE_PROJECT_ID")
	setString(&cfg.Project.Dir, "CLIPFORGE_PROJECT_DIR")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "CLIPFORGE_LLM_MODEL")
	setInt(&cfg.LiteLLM.MaxTokens, "CLIPFORGE_LLM_MAX_TOKENS")
	setFloat64(&cfg.LiteLLM.Temperature, "CLIPFORGE_LLM_TEMPERATURE")
	setDuration(&cfg.LiteLLM.Timeout, "CLIPFORGE_LLM_TIMEOUT")
	setString(&cfg.Inspector.Mode, "CLIPFORGE_INSPECTOR_MODE")
	setString(&cfg.Inspector.URL, "CLIPFORGE_INSPECTOR_URL")
	setString(&cfg.Inspector.ScenesDir, "CLIPFORGE_SCENES_DIR")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Store.Backend, "CLIPFORGE_STORE_BACKEND")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CLIPFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CLIPFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CLIPFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CLIPFORGE_PG_MAX_CONN_IDLE_TIME")
	setInt64(&cfg.Cache.L1MaxSizeMB, "CLIPFORGE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "CLIPFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "CLIPFORGE_CACHE_L2_TTL")
	setInt(&cfg.Breaker.MaxFailures, "CLIPFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CLIPFORGE_BREAKER_TIMEOUT")
	setBool(&cfg.Pipeline.VerifyAfterApply, "CLIPFORGE_VERIFY_AFTER_APPLY")
	setString(&cfg.Telemetry.Endpoint, "CLIPFORGE_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "CLIPFORGE_OTLP_INSECURE")
	setString(&cfg.Logging.Level, "CLIPFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CLIPFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CLIPFORGE_LOG_ASYNC")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Project.Dir == "" {
		return errors.New("project.dir is required")
	}
	if cfg.LiteLLM.URL == "" {
		return errors.New("litellm.url is required")
	}
	switch cfg.Store.Backend {
	case "file":
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres store backend")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("store.backend must be file or postgres, got %q", cfg.Store.Backend)
	}
	switch cfg.Inspector.Mode {
	case "agent":
	case "service":
		if cfg.Inspector.URL == "" {
			return errors.New("inspector.url is required for the service inspector mode")
		}
	default:
		return fmt.Errorf("inspector.mode must be agent or service, got %q", cfg.Inspector.Mode)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
