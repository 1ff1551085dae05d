package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Tracking   TrackingConfig   `yaml:"tracking" mapstructure:"tracking"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// MonitoringConfig configures funnel-health alerting.
type MonitoringConfig struct {
	AlertWebhookURL         string  `yaml:"alert_webhook_url" mapstructure:"alert_webhook_url"`
	CompletionRateThreshold float64 `yaml:"completion_rate_threshold" mapstructure:"completion_rate_threshold"`
	OutboxBacklogThreshold  int     `yaml:"outbox_backlog_threshold" mapstructure:"outbox_backlog_threshold"`
	MinSessions             int     `yaml:"min_sessions" mapstructure:"min_sessions"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// SessionConfig configures session storage.
type SessionConfig struct {
	Backend  string      `yaml:"backend" mapstructure:"backend"`
	TTLHours int         `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Redis    RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// ClassifierConfig points at the external product-classification endpoint.
type ClassifierConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// Circuit breaker over the classification endpoint.
	CircuitFailures  int `yaml:"circuit_failures" mapstructure:"circuit_failures"`
	CircuitResetSecs int `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// TrackingConfig configures the page-tracking webhook.
type TrackingConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	OutboxEnabled     bool   `yaml:"outbox_enabled" mapstructure:"outbox_enabled"`
	DrainIntervalSecs int    `yaml:"drain_interval_secs" mapstructure:"drain_interval_secs"`
	DrainBatch        int    `yaml:"drain_batch" mapstructure:"drain_batch"`

	// Redelivery retry policy used by the outbox drainer.
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// GoogleConfig holds Google OAuth sign-in settings.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	RedirectURL  string `yaml:"redirect_url" mapstructure:"redirect_url"`
}

// SalesforceConfig holds Salesforce JWT auth settings for lead sync.
type SalesforceConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// PricingConfig holds per-product pricing presented at the pricing step.
type PricingConfig struct {
	SEO     ProductPricing `yaml:"seo" mapstructure:"seo"`
	LeadGen ProductPricing `yaml:"leadgen" mapstructure:"leadgen"`
	LSA     ProductPricing `yaml:"lsa" mapstructure:"lsa"`
}

// ProductPricing holds one product's price points.
type ProductPricing struct {
	InitialCost    float64 `yaml:"initial_cost" mapstructure:"initial_cost"`
	MonthlyCost    float64 `yaml:"monthly_cost" mapstructure:"monthly_cost"`
	ContractLength string  `yaml:"contract_length" mapstructure:"contract_length"`
	SmartSite      bool    `yaml:"smart_site" mapstructure:"smart_site"`
}

// ForProduct returns the pricing block for a product name, or nil when the
// product is unknown.
func (p PricingConfig) ForProduct(product string) *ProductPricing {
	switch product {
	case "SEO":
		return &p.SEO
	case "LeadGen":
		return &p.LeadGen
	case "LSA":
		return &p.LSA
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 10.0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "funnel.db")
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("classifier.timeout_secs", 30)
	v.SetDefault("classifier.circuit_failures", 5)
	v.SetDefault("classifier.circuit_reset_secs", 30)
	v.SetDefault("tracking.timeout_secs", 15)
	v.SetDefault("tracking.drain_interval_secs", 60)
	v.SetDefault("tracking.drain_batch", 50)
	v.SetDefault("tracking.retry_attempts", 3)
	v.SetDefault("tracking.retry_backoff_ms", 500)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("pricing.seo.contract_length", "6 months")
	v.SetDefault("pricing.leadgen.contract_length", "6 months")
	v.SetDefault("pricing.lsa.contract_length", "3 months")
	v.SetDefault("pricing.seo.smart_site", true)
	v.SetDefault("monitoring.completion_rate_threshold", 0.05)
	v.SetDefault("monitoring.outbox_backlog_threshold", 100)
	v.SetDefault("monitoring.min_sessions", 20)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)

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

// Validate checks that the fields required for the given mode are set.
// Modes: "serve" (full server), "score" (offline scoring, no external
// services needed).
func (c *Config) Validate(mode string) error {
	var missing []string

	check := func(ok bool, msg string) {
		if !ok {
			missing = append(missing, msg)
		}
	}

	switch mode {
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
		check(c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
			"store.driver must be sqlite or postgres")
		if c.Store.Driver == "postgres" {
			check(c.Store.DatabaseURL != "", "store.database_url is required for postgres")
		}
		check(c.Session.Backend == "memory" || c.Session.Backend == "redis",
			"session.backend must be memory or redis")
		if c.Session.Backend == "redis" {
			check(c.Session.Redis.Addr != "", "session.redis.addr is required")
		}
		check(c.Classifier.URL != "", "classifier.url is required")
		check(c.Tracking.WebhookURL != "", "tracking.webhook_url is required")
		if c.Salesforce.Enabled {
			check(c.Salesforce.ClientID != "", "salesforce.client_id is required")
			check(c.Salesforce.Username != "", "salesforce.username is required")
			check(c.Salesforce.KeyPath != "", "salesforce.key_path is required")
		}
	case "score":
		// Pure computation, nothing external required.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
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
