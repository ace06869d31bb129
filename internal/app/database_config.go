package app

import (
	"strings"

	"github.com/MarcosLauremiro/miKan-api/internal/database"
)

// ConnectionConfig converts DatabaseConfig into database.Config, picking the
// host block that matches the driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	cfg := database.Config{
		Driver:   driver,
		Path:     c.Path,
		DSN:      strings.TrimSpace(c.DSN),
		LogLevel: c.LogLevel,
	}

	var host DBAuthConfig
	switch driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql", "mariadb":
		host = c.MySQL
	default:
		return cfg
	}
	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.User = host.Username
	cfg.Password = host.Password
	cfg.Name = host.Database
	return cfg
}
