// Package types provides configuration types for the template backend.
package types

import "time"

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	WebSocketPath  string        `json:"websocketPath" mapstructure:"websocket_path"`
	ReadTimeout    time.Duration `json:"readTimeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `json:"writeTimeout" mapstructure:"write_timeout"`
	MaxConnections int           `json:"maxConnections" mapstructure:"max_connections"`
	EnableMetrics  bool          `json:"enableMetrics" mapstructure:"enable_metrics"`
}

// StorageConfig represents document store configuration
type StorageConfig struct {
	// Path to the buntdb file; ":memory:" keeps everything in RAM.
	Path string `json:"path" mapstructure:"path"`
	// TemplateDir is where the trading platform keeps its XML templates.
	TemplateDir string `json:"templateDir" mapstructure:"template_dir"`
}

// EngineConfig tunes the recommendation engine
type EngineConfig struct {
	// BestEffortMinScore is the minimum similarity score the best-effort
	// resolution tier accepts.
	BestEffortMinScore float64 `json:"bestEffortMinScore" mapstructure:"best_effort_min_score"`
	// SparseBaselineScore is returned when too few fields are comparable.
	SparseBaselineScore float64 `json:"sparseBaselineScore" mapstructure:"sparse_baseline_score"`
	// Sanity ceilings for Flazh moving-average period growth.
	FlazhFastCeiling   int `json:"flazhFastCeiling" mapstructure:"flazh_fast_ceiling"`
	FlazhMediumCeiling int `json:"flazhMediumCeiling" mapstructure:"flazh_medium_ceiling"`
	FlazhSlowCeiling   int `json:"flazhSlowCeiling" mapstructure:"flazh_slow_ceiling"`
	// CollaboratorTimeout bounds repository and performance-store calls.
	CollaboratorTimeout time.Duration `json:"collaboratorTimeout" mapstructure:"collaborator_timeout"`
}

// Config is the root configuration document.
type Config struct {
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
	Engine  EngineConfig  `json:"engine" mapstructure:"engine"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel" mapstructure:"log_level"`
}

// DefaultConfig returns sensible defaults for local development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			WebSocketPath:  "/ws",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxConnections: 100,
			EnableMetrics:  true,
		},
		Storage: StorageConfig{
			Path:        "./data/templates.db",
			TemplateDir: "./data/templates",
		},
		Engine: EngineConfig{
			BestEffortMinScore:  40,
			SparseBaselineScore: 20,
			FlazhFastCeiling:    60,
			FlazhMediumCeiling:  90,
			FlazhSlowCeiling:    150,
			CollaboratorTimeout: 2 * time.Second,
		},
		LogLevel: "info",
	}
}
