package models

import (
	"time"
)

// DefaultHistoryTable is the ledger table name unless configured otherwise
const DefaultHistoryTable = "migration_history"

// MigrationHistory records one applied revision
type MigrationHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;unique;not null" json:"name"`
	DateApplied time.Time `gorm:"not null" json:"date_applied"`
}

// TableName ensures consistent table naming
func (MigrationHistory) TableName() string {
	return DefaultHistoryTable
}
