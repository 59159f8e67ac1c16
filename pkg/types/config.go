// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by the reference adapters.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout; the engine's per-source timeout
	// usually fires first.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "dispatch-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// EngineConfig holds settings for the federated engine.
type EngineConfig struct {
	// MaxConcurrency caps simultaneous adapter calls in one search (default 8).
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" mapstructure:"max_concurrency"`

	// DefaultLimit is the per-adapter limit for ad-hoc searches (default 10).
	DefaultLimit int `json:"default_limit" yaml:"default_limit" mapstructure:"default_limit"`

	// Timeout is the per-source timeout for ad-hoc searches (default 5s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// GlobalTimeout bounds a whole ad-hoc search (default 15s).
	GlobalTimeout time.Duration `json:"global_timeout" yaml:"global_timeout" mapstructure:"global_timeout"`
}

// HistoryConfig holds settings for the run history database.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// LogConfig selects the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// TracingConfig enables OTLP/HTTP span export.
type TracingConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// AdapterConfig holds non-secret settings for the reference adapters.
type AdapterConfig struct {
	// OpenAlexEmail is sent as the mailto parameter for the polite pool.
	OpenAlexEmail string `json:"openalex_email" yaml:"openalex_email" mapstructure:"openalex_email"`

	// ArxivInterval is the minimum spacing between arXiv API calls (default 3s).
	ArxivInterval time.Duration `json:"arxiv_interval" yaml:"arxiv_interval" mapstructure:"arxiv_interval"`
}

// Config groups every setting the CLI reads from the config file.
type Config struct {
	ProfilesFile string        `json:"profiles_file" yaml:"profiles_file" mapstructure:"profiles_file"`
	Engine       EngineConfig  `json:"engine" yaml:"engine" mapstructure:"engine"`
	HTTP         HTTPConfig    `json:"http" yaml:"http" mapstructure:"http"`
	History      HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
	Log          LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	Tracing      TracingConfig `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	Adapters     AdapterConfig `json:"adapters" yaml:"adapters" mapstructure:"adapters"`
}
