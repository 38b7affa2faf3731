package config

import "time"

// Sync modes for the client currency ledger.
const (
	// SyncModeOptimistic applies balance changes locally before the remote
	// call completes.
	SyncModeOptimistic = "optimistic"
	// SyncModeConfirmed applies balance changes only after the backend has
	// accepted them.
	SyncModeConfirmed = "confirmed"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
// The backend server uses Server, Database and LLM; the client engine uses
// Client, Economy and Sync.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Client   ClientConfig   `mapstructure:"client" validate:"required"`
	Economy  EconomyConfig  `mapstructure:"economy" validate:"required"`
	Sync     SyncConfig     `mapstructure:"sync" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// The URL is only required by the backend server.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// ClientConfig configures the reading client and its connection to the backend.
type ClientConfig struct {
	BackendURL  string        `mapstructure:"backend_url" validate:"required,url"`
	CachePath   string        `mapstructure:"cache_path" validate:"required"`
	Username    string        `mapstructure:"username" validate:"required,min=1,max=64"`
	Language    string        `mapstructure:"language" validate:"required,oneof=en zh"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"required,gt=0"`
	SyncMode    string        `mapstructure:"sync_mode" validate:"required,oneof=optimistic confirmed"`
	DrawLatency time.Duration `mapstructure:"draw_latency" validate:"gte=0"`
	AdDuration  time.Duration `mapstructure:"ad_duration" validate:"gte=0"`
}

// EconomyConfig holds the reward and pricing constants of the virtual economy.
type EconomyConfig struct {
	CompletionXP  int           `mapstructure:"completion_xp" validate:"gte=0"`
	DrawXP        int           `mapstructure:"draw_xp" validate:"gte=0"`
	PurchaseXP    int           `mapstructure:"purchase_xp" validate:"gte=0"`
	AdRewardCoins int           `mapstructure:"ad_reward_coins" validate:"required,gt=0"`
	AdCooldown    time.Duration `mapstructure:"ad_cooldown" validate:"required,gt=0"`
}

// SyncConfig configures the background runner that replays failed remote
// balance updates.
type SyncConfig struct {
	QueueSize   int           `mapstructure:"queue_size" validate:"required,gt=0"`
	WorkerCount int           `mapstructure:"worker_count" validate:"required,gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"required,gt=0"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings.
// An empty API key disables reading interpretation.
type LLMConfig struct {
	GeminiAPIKey string        `mapstructure:"gemini_api_key"`
	ModelName    string        `mapstructure:"model_name" validate:"required_with=GeminiAPIKey"`
	MaxRetries   int           `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RetryDelay   time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
}

// InterpretationEnabled reports whether an LLM key has been configured.
func (c LLMConfig) InterpretationEnabled() bool {
	return c.GeminiAPIKey != ""
}
