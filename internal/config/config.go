package config

import (
	"fmt"
	"net/url"
	"time"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the main application configuration
type Config struct {
	Database   Database   `json:"database" mapstructure:"database"`
	Migrations Migrations `json:"migrations" mapstructure:"migrations"`
	Server     Server     `json:"server" mapstructure:"server"`
	JWT        JWT        `json:"jwt" mapstructure:"jwt"`
	HTTP       HTTP       `json:"http" mapstructure:"http"`
}

// Database represents database configuration
type Database struct {
	Driver          string        `json:"driver" mapstructure:"driver"`
	URL             string        `json:"url" mapstructure:"url"`
	Path            string        `json:"path" mapstructure:"path"`
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	User            string        `json:"user" mapstructure:"user"`
	Password        string        `json:"password" mapstructure:"password"`
	DBName          string        `json:"dbname" mapstructure:"dbname"`
	SSLMode         string        `json:"sslmode" mapstructure:"sslmode"`
	ForeignKeys     bool          `json:"foreign_keys" mapstructure:"foreign_keys"`
	LogLevel        string        `json:"log_level" mapstructure:"log_level"`
	MaxConnections  int           `json:"max_connections" mapstructure:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Migrations locates the revision directory and the ledger table
type Migrations struct {
	Directory string `json:"directory" mapstructure:"directory"`
	Table     string `json:"table" mapstructure:"table"`
}

// Server represents process-wide settings
type Server struct {
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	Debug    bool   `json:"debug" mapstructure:"debug"`
}

// JWT represents JWT configuration
type JWT struct {
	Secret string `json:"secret" mapstructure:"secret"`
}

// HTTP represents the status API configuration
type HTTP struct {
	Port         int      `json:"port" mapstructure:"port"`
	AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
}

// NewDefault returns a Config instance with default values
func NewDefault() *Config {
	return &Config{
		Database: Database{
			Driver:          DriverSQLite,
			Path:            "db.db",
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			DBName:          "tienda",
			SSLMode:         "disable",
			ForeignKeys:     true,
			LogLevel:        "silent",
			MaxConnections:  10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Migrations: Migrations{
			Directory: "migrations",
			Table:     "migration_history",
		},
		Server: Server{
			LogLevel: "info",
		},
		JWT: JWT{
			Secret: "change-me-in-production",
		},
		HTTP: HTTP{
			Port:         8082,
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validGormLogLevels = map[string]bool{
	"silent": true,
	"error":  true,
	"warn":   true,
	"info":   true,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database port must be between 1 and 65535")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be greater than 0")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxConnections {
		return fmt.Errorf("max idle connections cannot exceed max connections")
	}
	if c.Database.LogLevel != "" && !validGormLogLevels[c.Database.LogLevel] {
		return fmt.Errorf("invalid database log level: %s", c.Database.LogLevel)
	}

	if c.Migrations.Directory == "" {
		return fmt.Errorf("migrations directory is required")
	}
	if c.Migrations.Table == "" {
		return fmt.Errorf("migrations table is required")
	}

	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	return nil
}

// DSN returns the driver-specific connection string
func (c *Config) DSN() string {
	if c.Database.Driver == DriverPostgres {
		return c.DatabaseURL()
	}
	if c.Database.ForeignKeys {
		return c.Database.Path + "?_foreign_keys=on"
	}
	return c.Database.Path
}

// DatabaseURL constructs a PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	params := url.Values{}
	params.Set("sslmode", c.Database.SSLMode)

	var userInfo *url.Userinfo
	if c.Database.Password == "" {
		userInfo = url.User(c.Database.User)
	} else {
		userInfo = url.UserPassword(c.Database.User, c.Database.Password)
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.DBName,
		RawQuery: params.Encode(),
	}

	return u.String()
}

// Describe returns the connection parameters without secrets, for `info`
func (c *Config) Describe() map[string]interface{} {
	if c.Database.Driver == DriverSQLite {
		return map[string]interface{}{
			"path":         c.Database.Path,
			"foreign_keys": c.Database.ForeignKeys,
		}
	}
	return map[string]interface{}{
		"host":    c.Database.Host,
		"port":    c.Database.Port,
		"user":    c.Database.User,
		"dbname":  c.Database.DBName,
		"sslmode": c.Database.SSLMode,
	}
}

// DatabaseName returns the database name for the configured driver
func (c *Config) DatabaseName() string {
	if c.Database.Driver == DriverSQLite {
		return c.Database.Path
	}
	return c.Database.DBName
}
