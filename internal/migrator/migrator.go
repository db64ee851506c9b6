// Package migrator applies schema operations to a live database connection,
// usually the transaction of the revision being run.
package migrator

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

// Dialect renders and runs the statements that differ between databases.
type Dialect interface {
	Name() string
	ColumnType(c revision.Column) string

	alterNotNull(ctx context.Context, db *gorm.DB, table, column string, notNull bool) error
	addTableConstraint(ctx context.Context, db *gorm.DB, table, name, definition string) error
	dropColumn(ctx context.Context, db *gorm.DB, op *revision.DropColumn) error
	dropTableSuffix(cascade bool) string
	session(ctx context.Context, db *gorm.DB, fn func(conn *gorm.DB) error) error
}

// DialectFor picks the dialect matching a gorm dialector name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	}
	return nil, utils.InvalidFieldError("driver", fmt.Sprintf("no schema dialect for %q", name))
}

// Migrator runs schema operations against db.
type Migrator struct {
	db      *gorm.DB
	dialect Dialect
}

// New creates a Migrator for the database behind db.
func New(db *gorm.DB) (*Migrator, error) {
	dialect, err := DialectFor(db.Dialector.Name())
	if err != nil {
		return nil, err
	}
	return &Migrator{db: db, dialect: dialect}, nil
}

// WithDB returns a Migrator bound to another handle, typically a transaction.
func (m *Migrator) WithDB(db *gorm.DB) *Migrator {
	return &Migrator{db: db, dialect: m.dialect}
}

// Dialect returns the active dialect.
func (m *Migrator) Dialect() Dialect {
	return m.dialect
}

// Session runs fn on a connection prepared for schema changes. Callers open
// the revision's transaction on conn and bind the migrator to it with WithDB.
func (m *Migrator) Session(ctx context.Context, fn func(conn *gorm.DB) error) error {
	return m.dialect.session(ctx, m.db, fn)
}

// Transaction opens a transaction on a prepared session and hands fn a
// migrator bound to it. Returning an error rolls back every schema change.
func (m *Migrator) Transaction(ctx context.Context, fn func(tm *Migrator, tx *gorm.DB) error) error {
	return m.Session(ctx, func(conn *gorm.DB) error {
		return conn.Transaction(func(tx *gorm.DB) error {
			return fn(m.WithDB(tx), tx)
		})
	})
}

// Apply dispatches op to the matching method.
func (m *Migrator) Apply(ctx context.Context, op revision.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	switch o := op.(type) {
	case *revision.CreateTable:
		return m.CreateTable(ctx, o)
	case *revision.DropTable:
		return m.DropTable(ctx, o)
	case *revision.AddColumn:
		return m.AddColumn(ctx, o)
	case *revision.DropColumn:
		return m.DropColumn(ctx, o)
	case *revision.RenameColumn:
		return m.RenameColumn(ctx, o)
	case *revision.RenameTable:
		return m.RenameTable(ctx, o)
	case *revision.AddNotNull:
		return m.AddNotNull(ctx, o)
	case *revision.DropNotNull:
		return m.DropNotNull(ctx, o)
	case *revision.AddIndex:
		return m.AddIndex(ctx, o)
	case *revision.DropIndex:
		return m.DropIndex(ctx, o)
	case *revision.AddConstraint:
		return m.AddConstraint(ctx, o)
	case *revision.AddForeignKey:
		return m.AddForeignKey(ctx, o)
	case *revision.ExecuteSQL:
		return m.ExecuteSQL(ctx, o)
	}
	return utils.InvalidFieldError("op", fmt.Sprintf("unsupported operation %T", op))
}

func (m *Migrator) exec(ctx context.Context, sql string, args ...interface{}) error {
	if err := m.db.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		return utils.WrapDatabaseError(sql, err)
	}
	return nil
}

// CreateTable creates the table followed by its indexes.
func (m *Migrator) CreateTable(ctx context.Context, op *revision.CreateTable) error {
	if err := m.exec(ctx, createTableSQL(m.dialect, op)); err != nil {
		return err
	}
	for _, stmt := range tableIndexes(op) {
		if err := m.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) DropTable(ctx context.Context, op *revision.DropTable) error {
	sql := "DROP TABLE "
	if op.Safe {
		sql += "IF EXISTS "
	}
	return m.exec(ctx, sql+quote(op.Table)+m.dialect.dropTableSuffix(op.Cascade))
}

// AddColumn adds the column. A NOT NULL column without a default is added
// nullable and tightened afterwards, since neither database accepts it
// directly on a populated table. Uniqueness becomes a unique index.
func (m *Migrator) AddColumn(ctx context.Context, op *revision.AddColumn) error {
	col := op.Column
	tighten := !col.Null && col.Default == nil

	def := col
	def.Unique, def.Index = false, false
	if tighten {
		def.Null = true
	}

	sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quote(op.Table), columnDefinition(m.dialect, def, true))
	if err := m.exec(ctx, sql); err != nil {
		return err
	}

	if tighten {
		if err := m.AddNotNull(ctx, &revision.AddNotNull{Table: op.Table, Column: col.Name}); err != nil {
			return err
		}
	}
	if col.Unique || col.Index {
		return m.AddIndex(ctx, &revision.AddIndex{Table: op.Table, Columns: []string{col.Name}, Unique: col.Unique})
	}
	return nil
}

func (m *Migrator) DropColumn(ctx context.Context, op *revision.DropColumn) error {
	return m.dialect.dropColumn(ctx, m.db, op)
}

func (m *Migrator) RenameColumn(ctx context.Context, op *revision.RenameColumn) error {
	return m.exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", quote(op.Table), quote(op.From), quote(op.To)))
}

func (m *Migrator) RenameTable(ctx context.Context, op *revision.RenameTable) error {
	return m.exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(op.From), quote(op.To)))
}

func (m *Migrator) AddNotNull(ctx context.Context, op *revision.AddNotNull) error {
	return m.dialect.alterNotNull(ctx, m.db, op.Table, op.Column, true)
}

func (m *Migrator) DropNotNull(ctx context.Context, op *revision.DropNotNull) error {
	return m.dialect.alterNotNull(ctx, m.db, op.Table, op.Column, false)
}

func (m *Migrator) AddIndex(ctx context.Context, op *revision.AddIndex) error {
	return m.exec(ctx, createIndexSQL(op.Table, op.IndexName(), op.Columns, op.Unique, false))
}

func (m *Migrator) DropIndex(ctx context.Context, op *revision.DropIndex) error {
	return m.exec(ctx, "DROP INDEX "+quote(op.Name))
}

func (m *Migrator) AddConstraint(ctx context.Context, op *revision.AddConstraint) error {
	return m.dialect.addTableConstraint(ctx, m.db, op.Table, op.Name, op.SQL)
}

func (m *Migrator) AddForeignKey(ctx context.Context, op *revision.AddForeignKey) error {
	return m.dialect.addTableConstraint(ctx, m.db, op.Table, op.ConstraintName(), foreignKeyClause(op.Column, op.References))
}

func (m *Migrator) ExecuteSQL(ctx context.Context, op *revision.ExecuteSQL) error {
	return m.exec(ctx, op.SQL, op.Params...)
}
