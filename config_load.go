package goSession

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads a YAML config file on top of [DefaultConfig] and applies
// GOSESSION_* environment overrides. An empty path reads the environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOSESSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

var envKeys = []string{
	"base_url",
	"endpoints.login",
	"endpoints.logout",
	"endpoints.me",
	"endpoints.refresh",
	"cache.authenticated_ttl",
	"cache.unauthenticated_ttl",
	"cache.unauthorized_ttl",
	"cache.error_ttl",
	"cache.redis_prefix",
	"timeouts.login",
	"timeouts.check",
	"timeouts.refresh",
	"timeouts.logout",
	"retry.max_retries",
	"retry.backoff",
	"refresh.proactive_window",
	"audit.enabled",
	"metrics.enabled",
}
