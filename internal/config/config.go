package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadfinder/internal/cost"
	"github.com/sells-group/leadfinder/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Apify      ApifyConfig      `yaml:"apify" mapstructure:"apify"`
	ZeroBounce ZeroBounceConfig `yaml:"zerobounce" mapstructure:"zerobounce"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Credits    CreditsConfig    `yaml:"credits" mapstructure:"credits"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the credit ledger backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres, redis.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisURL    string `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ApifyConfig holds the discovery provider settings.
type ApifyConfig struct {
	Token            string `yaml:"token" mapstructure:"token"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	ActorID          string `yaml:"actor_id" mapstructure:"actor_id"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PollInterval returns PollIntervalSecs as a duration.
func (a ApifyConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalSecs) * time.Second
}

// Timeout returns TimeoutSecs as a duration.
func (a ApifyConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// ZeroBounceConfig holds the email format and validation provider settings.
type ZeroBounceConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	IPAddress string `yaml:"ip_address" mapstructure:"ip_address"`
	// InferenceConfig points at an optional strategy file.
	InferenceConfig string `yaml:"inference_config" mapstructure:"inference_config"`
}

// GoogleConfig holds Places API settings for lead search.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CreditsConfig configures the inference credit ledger.
type CreditsConfig struct {
	DefaultGrant int `yaml:"default_grant" mapstructure:"default_grant"`
}

// EnrichmentConfig holds defaults for enrichment runs.
type EnrichmentConfig struct {
	Concurrency        int      `yaml:"concurrency" mapstructure:"concurrency"`
	MaxContactsPerLead int      `yaml:"max_contacts_per_lead" mapstructure:"max_contacts_per_lead"`
	MinConfidence      int      `yaml:"min_confidence" mapstructure:"min_confidence"`
	TargetTitles       []string `yaml:"target_titles" mapstructure:"target_titles"`
}

// RetryConfig configures provider call retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// Resilience converts to the retry policy.
func (r RetryConfig) Resilience() resilience.RetryConfig {
	return resilience.FromConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs)
}

// BreakerConfig configures per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// Resilience converts to the breaker settings. Only provider outages trip
// a breaker; per-request rejections do not.
func (b BreakerConfig) Resilience() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold: b.FailureThreshold,
		Cooldown:         time.Duration(b.CooldownSecs) * time.Second,
		Counts:           resilience.IsOutage,
	}
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures background health probes run by serve.
type MonitoringConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets get empty defaults so AutomaticEnv can bind them.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "leadfinder.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("apify.token", "")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.actor_id", "code_crafter~apollo-io-scraper")
	v.SetDefault("apify.poll_interval_secs", 5)
	v.SetDefault("apify.timeout_secs", 300)
	v.SetDefault("zerobounce.api_key", "")
	v.SetDefault("zerobounce.base_url", "https://api.zerobounce.net/v2")
	v.SetDefault("zerobounce.ip_address", "")
	v.SetDefault("zerobounce.inference_config", "")
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("pricing.discovery.per_block", 1.20)
	v.SetDefault("pricing.discovery.block_size", 1000)
	v.SetDefault("pricing.inference.credits_per_email", 1)
	v.SetDefault("pricing.inference.usd_per_credit", 0.01)
	v.SetDefault("credits.default_grant", 25)
	v.SetDefault("enrichment.concurrency", 10)
	v.SetDefault("enrichment.max_contacts_per_lead", 5)
	v.SetDefault("enrichment.min_confidence", 0)
	v.SetDefault("enrichment.target_titles", []string{"CEO", "Founder", "Owner", "President", "Director", "Manager"})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.check_interval_secs", 60)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			return eris.New("config: store.redis_url is required for the redis driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Credits.DefaultGrant < 0 {
		return eris.New("config: credits.default_grant must not be negative")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
