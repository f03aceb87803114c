// Package config loads leadsync settings from .env, an optional leadsync.yaml
// and LEADSYNC_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Zoho     ZohoConfig     `mapstructure:"zoho"`
	Token    TokenConfig    `mapstructure:"token"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Sync     SyncConfig     `mapstructure:"sync"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	AdminKey    string   `mapstructure:"admin_key"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// TrustProxy honours X-Forwarded-For for the client address.
	TrustProxy bool `mapstructure:"trust_proxy"`
	// CaptureRateLimit is the number of lead submissions allowed per IP per minute.
	CaptureRateLimit int `mapstructure:"capture_rate_limit"`
}

// StoreConfig selects the database backend: "postgres" or "sqlite".
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
}

// ZohoConfig holds OAuth client credentials and the regional hosts. AccountsURL
// and APIURL override the hosts derived from Region.
type ZohoConfig struct {
	Region       string   `mapstructure:"region"`
	AccountsURL  string   `mapstructure:"accounts_url"`
	APIURL       string   `mapstructure:"api_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
	TimeoutSecs  int      `mapstructure:"timeout_secs"`
	RateLimitRPS float64  `mapstructure:"rate_limit_rps"`
}

type TokenConfig struct {
	SkewSecs int `mapstructure:"skew_secs"`
}

type RetryConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts"`
	BaseDelayMs int     `mapstructure:"base_delay_ms"`
	MaxDelayMs  int     `mapstructure:"max_delay_ms"`
	Multiplier  float64 `mapstructure:"multiplier"`
}

type SyncConfig struct {
	Schedule      string `mapstructure:"schedule"`
	BatchLimit    int    `mapstructure:"batch_limit"`
	Concurrency   int    `mapstructure:"concurrency"`
	RequeueFailed bool   `mapstructure:"requeue_failed"`
	MaxRetryCount int    `mapstructure:"max_retry_count"`
}

type RabbitMQConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	OpsTo    string `mapstructure:"ops_to"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func (c ZohoConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func (c TokenConfig) Skew() time.Duration {
	return time.Duration(c.SkewSecs) * time.Second
}

func (c RetryConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

func (c RetryConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// Load reads .env (if present), leadsync.yaml (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("leadsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.capture_rate_limit", 10)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("zoho.region", "com")
	v.SetDefault("zoho.accounts_url", "")
	v.SetDefault("zoho.api_url", "")
	v.SetDefault("zoho.client_id", "")
	v.SetDefault("zoho.client_secret", "")
	v.SetDefault("zoho.redirect_url", "")
	v.SetDefault("zoho.scopes", []string{"ZohoCRM.modules.leads.CREATE", "ZohoCRM.modules.leads.READ"})
	v.SetDefault("zoho.timeout_secs", 20)
	v.SetDefault("zoho.rate_limit_rps", 5)
	v.SetDefault("token.skew_secs", 60)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("sync.schedule", "@every 5m")
	v.SetDefault("sync.batch_limit", 10)
	v.SetDefault("sync.concurrency", 1)
	v.SetDefault("sync.requeue_failed", false)
	v.SetDefault("sync.max_retry_count", 5)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@leadsync.local")
	v.SetDefault("mail.ops_to", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: store.driver must be postgres or sqlite, got %q", c.Store.Driver)
	}
	if c.Retry.MaxAttempts < 1 {
		return eris.New("config: retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelayMs < 0 || c.Retry.MaxDelayMs < 0 {
		return eris.New("config: retry delays must not be negative")
	}
	if c.Sync.BatchLimit < 1 {
		return eris.New("config: sync.batch_limit must be at least 1")
	}
	if c.Sync.Concurrency < 1 {
		return eris.New("config: sync.concurrency must be at least 1")
	}
	if c.Token.SkewSecs < 0 {
		return eris.New("config: token.skew_secs must not be negative")
	}
	return nil
}

// InitLogger replaces the global zap logger.
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
