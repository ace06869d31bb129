package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. MIKAN_SERVER_PORT.
const EnvPrefix = "MIKAN"

// Config represents the runtime configuration for the miKan API.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Email       EmailConfig       `mapstructure:"email"`
	Events      EventsConfig      `mapstructure:"events"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int             `mapstructure:"port"`
	LogLevel    string          `mapstructure:"log_level"`
	AppURL      string          `mapstructure:"app_url"`
	FrontendURL string          `mapstructure:"frontend_url"`
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig bounds requests per client and route.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	LogLevel string       `mapstructure:"log_level"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TLS       bool          `mapstructure:"tls"`
	Timeout   time.Duration `mapstructure:"timeout"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT        JWTSettings   `mapstructure:"jwt"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
	OAuth      OAuthSettings `mapstructure:"oauth"`
}

// JWTSettings configures access and refresh tokens. The two secrets must differ.
type JWTSettings struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	Issuer        string        `mapstructure:"issuer"`
	AccessTTL     time.Duration `mapstructure:"access_token_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_token_ttl"`
}

// OAuthSettings configures the social login providers.
type OAuthSettings struct {
	StateSecret string              `mapstructure:"state_secret"`
	StateTTL    time.Duration       `mapstructure:"state_ttl"`
	Google      OAuthProviderConfig `mapstructure:"google"`
	GitHub      OAuthProviderConfig `mapstructure:"github"`
}

// OAuthProviderConfig is one provider's client registration.
type OAuthProviderConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// EventsConfig selects the domain event transport.
type EventsConfig struct {
	Driver         string        `mapstructure:"driver"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	AMQP           AMQPConfig    `mapstructure:"amqp"`
}

// AMQPConfig holds RabbitMQ connection options.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
}

// MaintenanceConfig schedules background cleanup jobs.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	TokenSchedule      string `mapstructure:"token_schedule"`
	AuditSchedule      string `mapstructure:"audit_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles the health endpoint.
type HealthConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A path may name a directory to search for config.yaml or a config file. An
// optional .env in the working directory is loaded first; variables already set
// in the environment win.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			v.SetConfigFile(path)
			continue
		}
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Auth.JWT.AccessSecret) == "" || strings.TrimSpace(c.Auth.JWT.RefreshSecret) == "" {
		problems = append(problems, "auth.jwt.access_secret and auth.jwt.refresh_secret are required")
	} else if c.Auth.JWT.AccessSecret == c.Auth.JWT.RefreshSecret {
		problems = append(problems, "auth.jwt.access_secret and auth.jwt.refresh_secret must differ")
	}
	switch strings.ToLower(c.Events.Driver) {
	case "", "memory":
	case "amqp":
		if strings.TrimSpace(c.Events.AMQP.URL) == "" {
			problems = append(problems, "events.amqp.url is required for the amqp driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("events.driver %q is not supported", c.Events.Driver))
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3333)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.app_url", "http://localhost:3000")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/mikan.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "mikan")
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.database", "mikan")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.key_prefix", "mikan:")

	v.SetDefault("auth.jwt.access_secret", "")
	v.SetDefault("auth.jwt.refresh_secret", "")
	v.SetDefault("auth.jwt.issuer", "mikan-api")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.jwt.refresh_token_ttl", "168h") // 7 days
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.oauth.state_secret", "")
	v.SetDefault("auth.oauth.state_ttl", "10m")
	for _, provider := range []string{"google", "github"} {
		v.SetDefault("auth.oauth."+provider+".enabled", false)
		v.SetDefault("auth.oauth."+provider+".client_id", "")
		v.SetDefault("auth.oauth."+provider+".client_secret", "")
		v.SetDefault("auth.oauth."+provider+".redirect_url", "")
	}

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("events.driver", "memory")
	v.SetDefault("events.handler_timeout", "30s")
	v.SetDefault("events.amqp.url", "")
	v.SetDefault("events.amqp.queue", "mikan.events")
	v.SetDefault("events.amqp.prefetch", 50)

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.token_schedule", "@hourly")
	v.SetDefault("maintenance.audit_schedule", "@daily")
	v.SetDefault("maintenance.audit_retention_days", 90)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.timeout", "2s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
