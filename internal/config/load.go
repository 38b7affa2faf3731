package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "ARCANA"

// ErrDatabaseURLRequired is returned by LoadServer when no database URL is set.
var ErrDatabaseURLRequired = errors.New("database.url is required by the server")

// setDefaults registers the default values for every optional setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("client.backend_url", "http://localhost:8080")
	v.SetDefault("client.cache_path", "arcana.db")
	v.SetDefault("client.username", "seeker")
	v.SetDefault("client.language", "en")
	v.SetDefault("client.http_timeout", "10s")
	v.SetDefault("client.sync_mode", SyncModeOptimistic)
	v.SetDefault("client.draw_latency", "1s")
	v.SetDefault("client.ad_duration", "3s")

	v.SetDefault("economy.completion_xp", 30)
	v.SetDefault("economy.draw_xp", 10)
	v.SetDefault("economy.purchase_xp", 50)
	v.SetDefault("economy.ad_reward_coins", 10)
	v.SetDefault("economy.ad_cooldown", "60s")

	v.SetDefault("sync.queue_size", 64)
	v.SetDefault("sync.worker_count", 1)
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.retry_delay", "2s")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay", "1s")
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"database.url", "llm.gemini_api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadServer loads configuration for the backend server, which additionally
// requires a database connection URL.
func LoadServer() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("config validation failed: %w", ErrDatabaseURLRequired)
	}
	return cfg, nil
}
