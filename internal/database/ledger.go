package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/models"
	"github.com/ksred/tienda-moves/internal/utils"
)

// Ledger is the table recording which revisions are applied. Every read goes
// to the database; nothing is cached.
type Ledger struct {
	db     *gorm.DB
	table  string
	logger zerolog.Logger
	now    func() time.Time
}

// NewLedger creates a ledger over table; an empty name means migration_history
func NewLedger(db *gorm.DB, table string, logger zerolog.Logger) *Ledger {
	if table == "" {
		table = models.DefaultHistoryTable
	}
	return &Ledger{
		db:     db,
		table:  table,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Table returns the ledger table name
func (l *Ledger) Table() string {
	return l.table
}

// WithTx returns a ledger that reads and writes through tx
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	clone := *l
	clone.db = tx
	return &clone
}

func (l *Ledger) query(ctx context.Context) *gorm.DB {
	return l.db.WithContext(ctx).Table(l.table)
}

// Ensure creates the ledger table if it does not exist yet
func (l *Ledger) Ensure(ctx context.Context) error {
	db := l.db.WithContext(ctx)
	if db.Migrator().HasTable(l.table) {
		return nil
	}

	l.logger.Info().Str("table", l.table).Msg("Creating migration history table")
	if err := db.Table(l.table).Migrator().CreateTable(&models.MigrationHistory{}); err != nil {
		return utils.WrapDatabaseError("create ledger table", err)
	}
	return nil
}

// Applied returns the applied revision ids in ascending order
func (l *Ledger) Applied(ctx context.Context) ([]string, error) {
	var names []string
	if err := l.query(ctx).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, utils.WrapDatabaseError("list applied revisions", err)
	}
	return names, nil
}

// Entries returns every ledger row in ascending name order
func (l *Ledger) Entries(ctx context.Context) ([]models.MigrationHistory, error) {
	var rows []models.MigrationHistory
	if err := l.query(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, utils.WrapDatabaseError("list ledger entries", err)
	}
	return rows, nil
}

// IsApplied reports whether id has a ledger row
func (l *Ledger) IsApplied(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := l.query(ctx).Where("name = ?", id).Count(&count).Error; err != nil {
		return false, utils.WrapDatabaseError("check ledger entry", err)
	}
	return count > 0, nil
}

// Record marks id as applied
func (l *Ledger) Record(ctx context.Context, id string) error {
	applied, err := l.IsApplied(ctx, id)
	if err != nil {
		return err
	}
	if applied {
		return utils.WrapConflictError("ledger entry", "name", id)
	}

	row := &models.MigrationHistory{Name: id, DateApplied: l.now()}
	if err := l.query(ctx).Create(row).Error; err != nil {
		return utils.WrapDatabaseError("record revision", err)
	}

	l.logger.Debug().Str("revision", id).Msg("Recorded revision in ledger")
	return nil
}

// Unrecord removes the ledger row for id
func (l *Ledger) Unrecord(ctx context.Context, id string) error {
	result := l.query(ctx).Where("name = ?", id).Delete(&models.MigrationHistory{})
	if result.Error != nil {
		return utils.WrapDatabaseError("unrecord revision", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.WrapNotFoundError("ledger entry", id)
	}

	l.logger.Debug().Str("revision", id).Msg("Removed revision from ledger")
	return nil
}
