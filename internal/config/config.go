// Package config provides hierarchical configuration loading for ClipForge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the ClipForge revision service.
type Config struct {
	Server    Server    `yaml:"server"`
	Project   Project   `yaml:"project"`
	LiteLLM   LiteLLM   `yaml:"litellm"`
	Inspector Inspector `yaml:"inspector"`
	NATS      NATS      `yaml:"nats"`
	Store     Store     `yaml:"store"`
	Postgres  Postgres  `yaml:"postgres"`
	Cache     Cache     `yaml:"cache"`
	Breaker   Breaker   `yaml:"breaker"`
	Pipeline  Pipeline  `yaml:"pipeline"`
	Telemetry Telemetry `yaml:"telemetry"`
	Logging   Logging   `yaml:"logging"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Project locates the video project the service revises.
type Project struct {
	ID  string `yaml:"id"`  // used as the feedback history key
	Dir string `yaml:"dir"` // root containing script/, audio/, scenes/
}

// LiteLLM holds LLM proxy configuration.
type LiteLLM struct {
	URL         string        `yaml:"url"`
	MasterKey   string        `yaml:"master_key"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Inspector holds scene refinement configuration.
// Mode "service" calls an external inspector over HTTP; "agent" drives the
// LLM provider's file-access capability directly against the scene files.
type Inspector struct {
	Mode      string `yaml:"mode"`
	URL       string `yaml:"url"`
	ScenesDir string `yaml:"scenes_dir"`
}

// NATS holds NATS JetStream configuration. Leave URL empty to disable
// event publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// Store selects the feedback history backend.
type Store struct {
	Backend string `yaml:"backend"` // "file" | "postgres"
}

// Postgres holds PostgreSQL connection configuration for the postgres
// feedback store backend.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// Cache holds LLM response cache configuration. L1 is in-process; L2 is a
// NATS KV bucket shared across restarts (requires NATS).
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L2Bucket    string        `yaml:"l2_bucket"`
	L2TTL       time.Duration `yaml:"l2_ttl"`
}

// Breaker holds circuit breaker configuration for outbound LLM and
// inspector calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Pipeline holds feedback pipeline behavior toggles.
type Pipeline struct {
	VerifyAfterApply bool `yaml:"verify_after_apply"`
}

// Telemetry holds OpenTelemetry export configuration. Leave Endpoint empty
// to disable export.
type Telemetry struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8090",
			CORSOrigin: "http://localhost:3000",
		},
		Project: Project{
			ID:  "default",
			Dir: ".",
		},
		LiteLLM: LiteLLM{
			URL:         "http://localhost:4000",
			Model:       "openai/gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.2,
			Timeout:     120 * time.Second,
		},
		Inspector: Inspector{
			Mode:      "agent",
			ScenesDir: "scenes",
		},
		Store: Store{
			Backend: "file",
		},
		Postgres: Postgres{
			DSN:             "",
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
		},
		Cache: Cache{
			L1MaxSizeMB: 64,
			L2Bucket:    "clipforge-llm-cache",
			L2TTL:       time.Hour,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Pipeline: Pipeline{
			VerifyAfterApply: true,
		},
		Logging: Logging{
			Level:   "info",
			Service: "clipforge-core",
		},
	}
}
