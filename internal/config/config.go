// Package config loads backend configuration from a yaml file with
// environment-variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/quantdesk/template-backend/pkg/types"
	"github.com/spf13/viper"
)

// Load reads configuration from the given file (optional) merged over the
// defaults, with QD_-prefixed environment variables taking precedence
// (e.g. QD_SERVER_PORT=9090).
func Load(path string) (*types.Config, error) {
	v := viper.New()

	defaults := types.DefaultConfig()
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.websocket_path", defaults.Server.WebSocketPath)
	v.SetDefault("server.read_timeout", defaults.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", defaults.Server.WriteTimeout)
	v.SetDefault("server.max_connections", defaults.Server.MaxConnections)
	v.SetDefault("server.enable_metrics", defaults.Server.EnableMetrics)
	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("storage.template_dir", defaults.Storage.TemplateDir)
	v.SetDefault("engine.best_effort_min_score", defaults.Engine.BestEffortMinScore)
	v.SetDefault("engine.sparse_baseline_score", defaults.Engine.SparseBaselineScore)
	v.SetDefault("engine.flazh_fast_ceiling", defaults.Engine.FlazhFastCeiling)
	v.SetDefault("engine.flazh_medium_ceiling", defaults.Engine.FlazhMediumCeiling)
	v.SetDefault("engine.flazh_slow_ceiling", defaults.Engine.FlazhSlowCeiling)
	v.SetDefault("engine.collaborator_timeout", defaults.Engine.CollaboratorTimeout)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix("QD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
