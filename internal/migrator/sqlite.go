package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) ColumnType(c revision.Column) string {
	switch c.Type.Canonical() {
	case revision.TypeBare:
		return ""
	case revision.TypeBigInteger, revision.TypeBool, revision.TypeInt, revision.TypeSmallInt,
		revision.TypePrimaryKey, revision.TypeForeignKey:
		return "INTEGER"
	case revision.TypeBlob, revision.TypeBinUUID:
		return "BLOB"
	case revision.TypeFixed:
		return sizedType("CHAR", c.MaxLength, 255)
	case revision.TypeDate:
		return "DATE"
	case revision.TypeDateTime:
		return "DATETIME"
	case revision.TypeTime:
		return "TIME"
	case revision.TypeDecimal:
		return decimalType("DECIMAL", c)
	case revision.TypeDouble, revision.TypeFloat:
		return "REAL"
	case revision.TypeText, revision.TypeUUID:
		return "TEXT"
	}
	return sizedType("VARCHAR", c.MaxLength, 255)
}

func (sqliteDialect) dropTableSuffix(bool) string {
	return ""
}

// dropColumn removes the indexes that cover the column first; sqlite refuses
// to drop an indexed column.
func (sqliteDialect) dropColumn(ctx context.Context, db *gorm.DB, op *revision.DropColumn) error {
	db = db.WithContext(ctx)

	var indexes []string
	err := db.Table("sqlite_master").
		Where("type = ? AND tbl_name = ? AND sql IS NOT NULL", "index", op.Table).
		Pluck("name", &indexes).Error
	if err != nil {
		return utils.WrapDatabaseError("list indexes", err)
	}

	for _, idx := range indexes {
		covers, err := indexCovers(db, idx, op.Column)
		if err != nil {
			return err
		}
		if covers {
			if err := db.Exec("DROP INDEX " + quote(idx)).Error; err != nil {
				return utils.WrapDatabaseError("drop index", err)
			}
		}
	}

	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", quote(op.Table), quote(op.Column))
	if err := db.Exec(stmt).Error; err != nil {
		return utils.WrapDatabaseError(stmt, err)
	}
	return nil
}

func indexCovers(db *gorm.DB, index, column string) (bool, error) {
	rows, err := db.Raw("SELECT name FROM pragma_index_info(?)", index).Rows()
	if err != nil {
		return false, utils.WrapDatabaseError("inspect index", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return false, utils.WrapDatabaseError("inspect index", err)
		}
		if name.Valid && strings.EqualFold(name.String, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

var notNullPattern = regexp.MustCompile(`(?i)\s+NOT\s+NULL\b`)

func (d sqliteDialect) alterNotNull(ctx context.Context, db *gorm.DB, table, column string, notNull bool) error {
	return d.rebuild(ctx, db, table, func(defs []string) ([]string, error) {
		i := findColumnDefinition(defs, column)
		if i < 0 {
			return nil, utils.WrapNotFoundError("column", table+"."+column)
		}
		def := defs[i]
		has := notNullPattern.MatchString(def)
		switch {
		case notNull && !has:
			end := columnTypeEnd(def)
			defs[i] = def[:end] + " NOT NULL" + def[end:]
		case !notNull && has:
			defs[i] = notNullPattern.ReplaceAllString(def, "")
		}
		return defs, nil
	})
}

func (d sqliteDialect) addTableConstraint(ctx context.Context, db *gorm.DB, table, name, definition string) error {
	return d.rebuild(ctx, db, table, func(defs []string) ([]string, error) {
		return append(defs, fmt.Sprintf("CONSTRAINT %s %s", quote(name), definition)), nil
	})
}

// session pins one connection and turns foreign key enforcement off around
// fn. sqlite ignores the pragma inside a transaction, so this has to wrap the
// revision's transaction rather than run within it.
func (sqliteDialect) session(ctx context.Context, db *gorm.DB, fn func(conn *gorm.DB) error) error {
	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		// each statement below starts from a clean Statement on the pinned connection
		conn = conn.Session(&gorm.Session{NewDB: true})
		enabled, err := foreignKeysEnabled(conn)
		if err != nil {
			return err
		}
		if enabled {
			if err := conn.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
				return utils.WrapDatabaseError("disable foreign keys", err)
			}
			defer conn.Exec("PRAGMA foreign_keys = ON")
		}
		return fn(conn)
	})
}

func foreignKeysEnabled(db *gorm.DB) (bool, error) {
	var enabled int
	if err := db.Raw("PRAGMA foreign_keys").Row().Scan(&enabled); err != nil {
		return false, utils.WrapDatabaseError("read foreign_keys pragma", err)
	}
	return enabled == 1, nil
}

// rebuild recreates table from an edited copy of its definition list,
// following the procedure sqlite documents for ALTER TABLE changes it does
// not support. It must run with foreign key enforcement off, otherwise
// dropping the original would cascade into referencing tables; the
// references are checked once the new table is in place.
func (sqliteDialect) rebuild(ctx context.Context, db *gorm.DB, table string, edit func([]string) ([]string, error)) error {
	db = db.WithContext(ctx)

	enabled, err := foreignKeysEnabled(db)
	if err != nil {
		return err
	}
	if enabled {
		return utils.InvalidFieldError("foreign_keys", fmt.Sprintf("rebuilding %s needs foreign keys disabled; run it inside Migrator.Session", table))
	}

	var createSQL string
	row := db.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Row()
	if err := row.Scan(&createSQL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return utils.WrapNotFoundError("table", table)
		}
		return utils.WrapDatabaseError("read table definition", err)
	}

	var indexSQL []string
	err = db.Table("sqlite_master").
		Where("type = ? AND tbl_name = ? AND sql IS NOT NULL", "index", table).
		Order("name").
		Pluck("sql", &indexSQL).Error
	if err != nil {
		return utils.WrapDatabaseError("read index definitions", err)
	}

	open, closing := strings.Index(createSQL, "("), strings.LastIndex(createSQL, ")")
	if open < 0 || closing < open {
		return utils.InvalidFieldError("table", fmt.Sprintf("cannot parse definition of %s", table))
	}
	defs, err := edit(splitDefinitions(createSQL[open+1 : closing]))
	if err != nil {
		return err
	}

	tmp := "__new__" + table
	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", quote(tmp), strings.Join(defs, ", ")),
		fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", quote(tmp), quote(table)),
		"DROP TABLE " + quote(table),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(tmp), quote(table)),
	}
	stmts = append(stmts, indexSQL...)

	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return utils.WrapDatabaseError(stmt, err)
		}
	}
	return checkForeignKeys(db, table)
}

func checkForeignKeys(db *gorm.DB, table string) error {
	rows, err := db.Raw("SELECT \"table\", parent FROM pragma_foreign_key_check(?)", table).Rows()
	if err != nil {
		return utils.WrapDatabaseError("foreign key check", err)
	}
	defer rows.Close()

	violations := 0
	var parent string
	for rows.Next() {
		var child string
		if err := rows.Scan(&child, &parent); err != nil {
			return utils.WrapDatabaseError("foreign key check", err)
		}
		violations++
	}
	if err := rows.Err(); err != nil {
		return utils.WrapDatabaseError("foreign key check", err)
	}
	if violations > 0 {
		return utils.WrapDatabaseError("foreign key check",
			fmt.Errorf("%d row(s) of %s reference missing rows of %s", violations, table, parent))
	}
	return nil
}

// splitDefinitions splits the body of a CREATE TABLE on top-level commas.
func splitDefinitions(body string) []string {
	var (
		defs    []string
		depth   int
		inQuote rune
		start   int
	)
	for i, r := range body {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			inQuote = r
		case r == '[':
			inQuote = ']'
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == ',' && depth == 0:
			defs = append(defs, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(body[start:]); tail != "" {
		defs = append(defs, tail)
	}
	return defs
}

var tableConstraintKeywords = []string{"CONSTRAINT", "PRIMARY", "UNIQUE", "CHECK", "FOREIGN"}

// findColumnDefinition returns the index of the definition for column, or -1.
func findColumnDefinition(defs []string, column string) int {
	for i, def := range defs {
		name, _ := leadingIdentifier(def)
		upper := strings.ToUpper(name)
		isConstraint := false
		for _, kw := range tableConstraintKeywords {
			if upper == kw && !isQuoted(def) {
				isConstraint = true
				break
			}
		}
		if !isConstraint && strings.EqualFold(name, column) {
			return i
		}
	}
	return -1
}

func isQuoted(def string) bool {
	return def != "" && strings.ContainsRune("\"`[", rune(def[0]))
}

// leadingIdentifier returns the first identifier of def, unquoted, and the
// offset just past it.
func leadingIdentifier(def string) (string, int) {
	if def == "" {
		return "", 0
	}
	closing := map[byte]byte{'"': '"', '`': '`', '[': ']'}
	if end, ok := closing[def[0]]; ok {
		if j := strings.IndexByte(def[1:], end); j >= 0 {
			return def[1 : j+1], j + 2
		}
		return def[1:], len(def)
	}
	j := strings.IndexAny(def, " \t\n")
	if j < 0 {
		return def, len(def)
	}
	return def[:j], j
}

var columnConstraintKeywords = map[string]bool{
	"CONSTRAINT": true, "PRIMARY": true, "NOT": true, "NULL": true, "UNIQUE": true,
	"CHECK": true, "DEFAULT": true, "COLLATE": true, "REFERENCES": true,
	"GENERATED": true, "AS": true,
}

// columnTypeEnd returns the offset right after the declared type of a column
// definition, where a new column constraint can be inserted.
func columnTypeEnd(def string) int {
	_, pos := leadingIdentifier(def)
	end := pos
	for pos < len(def) {
		for pos < len(def) && (def[pos] == ' ' || def[pos] == '\t' || def[pos] == '\n') {
			pos++
		}
		if pos >= len(def) {
			break
		}
		if def[pos] == '(' {
			depth := 0
			for pos < len(def) {
				if def[pos] == '(' {
					depth++
				} else if def[pos] == ')' {
					depth--
					if depth == 0 {
						pos++
						break
					}
				}
				pos++
			}
			end = pos
			continue
		}
		wordEnd := pos
		for wordEnd < len(def) && def[wordEnd] != ' ' && def[wordEnd] != '(' && def[wordEnd] != '\t' && def[wordEnd] != '\n' {
			wordEnd++
		}
		if columnConstraintKeywords[strings.ToUpper(def[pos:wordEnd])] {
			break
		}
		pos = wordEnd
		end = pos
	}
	return end
}
