package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/tienda-moves/internal/config"
)

// Database manages the database connection and operations
type Database struct {
	db         *gorm.DB
	config     config.Database
	dsn        string
	info       map[string]interface{}
	mu         sync.RWMutex
	maxRetries int
	retryDelay time.Duration
}

// NewDatabase creates a new Database instance
func NewDatabase(cfg *config.Config) *Database {
	return &Database{
		config:     cfg.Database,
		dsn:        cfg.DSN(),
		info:       cfg.Describe(),
		maxRetries: 5,
		retryDelay: 2 * time.Second,
	}
}

// Connect opens the configured database with retry logic
func (d *Database) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dialector, err := d.dialector()
	if err != nil {
		return err
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(d.getLogLevel()),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	retryDelay := d.retryDelay
	for i := 0; i < d.maxRetries; i++ {
		d.db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			break
		}

		if i < d.maxRetries-1 && isRetryableError(err) {
			time.Sleep(retryDelay)
			retryDelay *= 2
			continue
		}
		break
	}

	if err != nil {
		d.db = nil
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if d.config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(d.config.MaxIdleConns)
	}
	if d.config.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(d.config.MaxConnections)
	}
	if d.config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(d.config.ConnMaxLifetime)
	}
	if d.config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(d.config.ConnMaxIdleTime)
	}

	return nil
}

func (d *Database) dialector() (gorm.Dialector, error) {
	switch d.config.Driver {
	case config.DriverSQLite:
		return sqlite.Open(d.dsn), nil
	case config.DriverPostgres:
		return postgres.Open(d.dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", d.config.Driver)
	}
}

// Health checks the database connection health
func (d *Database) Health(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return fmt.Errorf("database not connected")
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	d.db = nil
	return nil
}

// DB returns the underlying gorm.DB instance
func (d *Database) DB() *gorm.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// SetDB sets the underlying gorm.DB instance (for testing)
func (d *Database) SetDB(db *gorm.DB) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.db = db
}

// Driver returns the configured driver name
func (d *Database) Driver() string {
	return d.config.Driver
}

// Info returns the driver and connection arguments, without the password
func (d *Database) Info() map[string]interface{} {
	info := map[string]interface{}{"driver": d.config.Driver}
	for k, v := range d.info {
		info[k] = v
	}
	return info
}

// getLogLevel returns the GORM log level from config
func (d *Database) getLogLevel() logger.LogLevel {
	switch strings.ToLower(d.config.LogLevel) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"database is locked",
		"too many connections",
		"connection timeout",
	}

	for _, retryable := range retryableErrors {
		if containsIgnoreCase(errStr, retryable) {
			return true
		}
	}

	return false
}

// containsIgnoreCase checks if string contains substring (case insensitive)
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
