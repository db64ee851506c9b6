package migrator

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) ColumnType(c revision.Column) string {
	switch c.Type.Canonical() {
	case revision.TypeBare:
		return ""
	case revision.TypeBigInteger:
		return "BIGINT"
	case revision.TypeBlob, revision.TypeBinUUID:
		return "BYTEA"
	case revision.TypeBool:
		return "BOOLEAN"
	case revision.TypeFixed:
		return sizedType("CHAR", c.MaxLength, 255)
	case revision.TypeDate:
		return "DATE"
	case revision.TypeDateTime:
		return "TIMESTAMP"
	case revision.TypeTime:
		return "TIME"
	case revision.TypeDecimal:
		return decimalType("NUMERIC", c)
	case revision.TypeDouble:
		return "DOUBLE PRECISION"
	case revision.TypeFloat:
		return "REAL"
	case revision.TypeInt, revision.TypeForeignKey:
		return "INTEGER"
	case revision.TypePrimaryKey:
		return "SERIAL"
	case revision.TypeSmallInt:
		return "SMALLINT"
	case revision.TypeText:
		return "TEXT"
	case revision.TypeUUID:
		return "UUID"
	}
	return sizedType("VARCHAR", c.MaxLength, 255)
}

func (postgresDialect) dropTableSuffix(cascade bool) string {
	if cascade {
		return " CASCADE"
	}
	return ""
}

// session needs no preparation; postgres runs ALTER TABLE in a transaction
// with constraints intact.
func (postgresDialect) session(ctx context.Context, db *gorm.DB, fn func(conn *gorm.DB) error) error {
	return fn(db.Session(&gorm.Session{NewDB: true, Context: ctx}))
}

func (postgresDialect) dropColumn(ctx context.Context, db *gorm.DB, op *revision.DropColumn) error {
	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quote(op.Table), quote(op.Column))
	if op.Cascade {
		stmt += " CASCADE"
	}
	return execPostgres(ctx, db, stmt)
}

func (postgresDialect) alterNotNull(ctx context.Context, db *gorm.DB, table, column string, notNull bool) error {
	action := "DROP NOT NULL"
	if notNull {
		action = "SET NOT NULL"
	}
	return execPostgres(ctx, db, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", quote(table), quote(column), action))
}

func (postgresDialect) addTableConstraint(ctx context.Context, db *gorm.DB, table, name, definition string) error {
	return execPostgres(ctx, db, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", quote(table), quote(name), definition))
}

func execPostgres(ctx context.Context, db *gorm.DB, stmt string) error {
	if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return utils.WrapDatabaseError(stmt, err)
	}
	return nil
}
