package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarcosLauremiro/miKan-api/internal/auth"
	"github.com/MarcosLauremiro/miKan-api/internal/auth/providers"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://app.mikan.dev", "https://admin.mikan.dev"}, cfg.Server.CORS.AllowedOrigins)
	require.Equal(t, 20, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 6432, cfg.Database.Postgres.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "access-from-file", cfg.Auth.JWT.AccessSecret)
	require.Equal(t, 336*time.Hour, cfg.Auth.JWT.RefreshTTL)
	require.Equal(t, 12, cfg.Auth.BcryptCost)
	require.Equal(t, "mikan-api", cfg.Auth.JWT.Issuer)

	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)
	require.Equal(t, "no-reply@mikan.dev", cfg.Email.SMTP.From)

	require.True(t, cfg.Events.UsesAMQP())
	require.Equal(t, "mikan.test", cfg.Events.AMQP.Queue)
	require.Equal(t, 50, cfg.Events.AMQP.Prefetch)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)
	require.Equal(t, "*/30 * * * *", cfg.Maintenance.TokenSchedule)
	require.Equal(t, "@daily", cfg.Maintenance.AuditSchedule)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MIKAN_SERVER_PORT", "7070")
	t.Setenv("MIKAN_AUTH_JWT_ACCESS_SECRET", "env-access")
	t.Setenv("MIKAN_EVENTS_DRIVER", "memory")

	cfg, err := LoadConfig("testdata/config.yaml")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "env-access", cfg.Auth.JWT.AccessSecret)
	require.False(t, cfg.Events.UsesAMQP())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 3333, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 100, cfg.Server.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.Server.RateLimit.Window)
	require.Equal(t, "memory", cfg.Events.Driver)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)

	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "access_secret")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 80},
			Auth:   AuthConfig{JWT: JWTSettings{AccessSecret: "a", RefreshSecret: "b"}},
		}
	}

	require.NoError(t, valid().Validate())

	same := valid()
	same.Auth.JWT.RefreshSecret = "a"
	require.ErrorContains(t, same.Validate(), "must differ")

	amqp := valid()
	amqp.Events.Driver = "amqp"
	require.ErrorContains(t, amqp.Validate(), "events.amqp.url")

	kafka := valid()
	kafka.Events.Driver = "kafka"
	require.ErrorContains(t, kafka.Validate(), "not supported")

	port := valid()
	port.Server.Port = 0
	require.ErrorContains(t, port.Validate(), "server.port")
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		JWT: JWTSettings{
			AccessSecret:  "access",
			RefreshSecret: "refresh",
			Issuer:        "issuer",
			AccessTTL:     30 * time.Minute,
		},
		OAuth: OAuthSettings{
			Google: OAuthProviderConfig{Enabled: true, ClientID: " gid ", ClientSecret: "gsecret"},
			GitHub: OAuthProviderConfig{Enabled: true},
		},
	}

	require.Equal(t, auth.JWTConfig{
		AccessSecret:    "access",
		RefreshSecret:   "refresh",
		Issuer:          "issuer",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: auth.DefaultRefreshTokenTTL,
	}, cfg.JWTServiceConfig())

	google, ok := cfg.GoogleClientConfig()
	require.True(t, ok)
	require.Equal(t, providers.ClientConfig{ClientID: "gid", ClientSecret: "gsecret"}, google)

	_, ok = cfg.GitHubClientConfig()
	require.False(t, ok, "enabled without a client id")

	require.Equal(t, []byte("oauth-state:refresh"), cfg.StateKey())
	cfg.OAuth.StateSecret = "state-secret-value"
	require.Equal(t, []byte("state-secret-value"), cfg.StateKey())
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "MySQL",
		MySQL:  DBAuthConfig{Host: "db", Port: 3307, Database: "mikan", Username: "u", Password: "p"},
	}
	conn := cfg.ConnectionConfig()
	require.Equal(t, "mysql", conn.Driver)
	require.Equal(t, "db", conn.Host)
	require.Equal(t, 3307, conn.Port)
	require.Equal(t, "mikan", conn.Name)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/x.db"}.ConnectionConfig()
	require.Equal(t, "/tmp/x.db", sqlite.Path)
	require.Empty(t, sqlite.Host)
}

func TestEmailConfigAdapter(t *testing.T) {
	cfg := EmailConfig{
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.Equal(t, 10*time.Second, settings.Timeout)

	server := ServerConfig{AppURL: "https://api.mikan.dev"}
	require.Equal(t, "https://api.mikan.dev", server.NotificationConfig().AppURL)
	server.FrontendURL = "https://app.mikan.dev"
	require.Equal(t, "https://app.mikan.dev", server.NotificationConfig().AppURL)
}
