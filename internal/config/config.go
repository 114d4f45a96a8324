// Package config loads the ledger's settings from flags, environment and
// an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-ledger/internal/common"
)

// DefaultDatabasePath is where the ledger lives unless configured.
const DefaultDatabasePath = "~/.local/share/spice/spice.db"

// Config is the typed application configuration.
type Config struct {
	Database DatabaseConfig
	User     UserConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Quota    QuotaConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// UserConfig names the user that CLI commands and header-less API requests
// act as.
type UserConfig struct {
	ID string
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr string
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// QuotaConfig holds usage limits. A MonthlyLimit of zero disables the check.
type QuotaConfig struct {
	MonthlyLimit int `mapstructure:"monthly_limit"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("user.id", "default")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("quota.monthly_limit", 0)
}

// Load reads the configuration held by v, which the caller has already
// pointed at its config file, environment and flags.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	c.Database.Path = ExpandPath(c.Database.Path)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if strings.TrimSpace(c.User.ID) == "" {
		return fmt.Errorf("%w: user.id", common.ErrMissingConfig)
	}
	if c.Quota.MonthlyLimit < 0 {
		return fmt.Errorf("%w: quota.monthly_limit must not be negative", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: invalid log format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ExpandPath resolves a leading ~ to the home directory and expands $VAR
// references, so database paths can be written portably in config files.
// The path is returned unchanged when the home directory is unknown.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return os.ExpandEnv(path)
}
