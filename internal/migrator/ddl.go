package migrator

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ksred/tienda-moves/internal/revision"
)

// quote renders an identifier with double quotes, which both sqlite and
// postgres accept.
func quote(name string) string {
	return pq.QuoteIdentifier(name)
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

// columnDefinition renders one column for CREATE TABLE or ADD COLUMN. Inline
// references are only used by ADD COLUMN; CREATE TABLE emits table-level
// FOREIGN KEY clauses instead.
func columnDefinition(d Dialect, c revision.Column, inlineReference bool) string {
	var b strings.Builder
	b.WriteString(quote(c.Name))

	if typ := d.ColumnType(c); typ != "" {
		b.WriteString(" ")
		b.WriteString(typ)
	}

	pk := c.IsPrimaryKey()
	if !c.Null || pk {
		b.WriteString(" NOT NULL")
	}
	if pk {
		b.WriteString(" PRIMARY KEY")
	} else if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	for _, constraint := range c.Constraints {
		b.WriteString(" ")
		b.WriteString(constraint)
	}
	if inlineReference && c.References != nil {
		b.WriteString(" ")
		b.WriteString(referencesClause(*c.References))
	}
	return b.String()
}

func referencesClause(ref revision.Reference) string {
	clause := fmt.Sprintf("REFERENCES %s (%s)", quote(ref.Table), quote(ref.Column))
	if ref.OnDelete != "" {
		clause += " ON DELETE " + strings.ToUpper(ref.OnDelete)
	}
	if ref.OnUpdate != "" {
		clause += " ON UPDATE " + strings.ToUpper(ref.OnUpdate)
	}
	return clause
}

func foreignKeyClause(column string, ref revision.Reference) string {
	return fmt.Sprintf("FOREIGN KEY (%s) %s", quote(column), referencesClause(ref))
}

func createTableSQL(d Dialect, op *revision.CreateTable) string {
	defs := make([]string, 0, len(op.Columns)+len(op.Constraints))
	for _, c := range op.Columns {
		defs = append(defs, columnDefinition(d, c, false))
	}
	for _, c := range op.Columns {
		if c.References != nil {
			defs = append(defs, foreignKeyClause(c.Name, *c.References))
		}
	}
	defs = append(defs, op.Constraints...)

	prefix := "CREATE TABLE "
	if op.Safe {
		prefix += "IF NOT EXISTS "
	}
	return prefix + quote(op.Table) + " (" + strings.Join(defs, ", ") + ")"
}

func createIndexSQL(table, name string, columns []string, unique, safe bool) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if safe {
		b.WriteString("IF NOT EXISTS ")
	}
	fmt.Fprintf(&b, "%s ON %s (%s)", quote(name), quote(table), quoteAll(columns))
	return b.String()
}

// tableIndexes lists the CREATE INDEX statements that accompany create_table:
// one per indexed column, then the declared composite indexes.
func tableIndexes(op *revision.CreateTable) []string {
	var stmts []string
	for _, c := range op.Columns {
		if !c.Index || c.Unique || c.IsPrimaryKey() {
			continue
		}
		cols := []string{c.Name}
		stmts = append(stmts, createIndexSQL(op.Table, revision.DefaultIndexName(op.Table, cols), cols, false, op.Safe))
	}
	for _, idx := range op.Indexes {
		name := idx.Name
		if name == "" {
			name = revision.DefaultIndexName(op.Table, idx.Columns)
		}
		stmts = append(stmts, createIndexSQL(op.Table, name, idx.Columns, idx.Unique, op.Safe))
	}
	return stmts
}

func sizedType(base string, size, fallback int) string {
	if size <= 0 {
		size = fallback
	}
	return fmt.Sprintf("%s(%d)", base, size)
}

func decimalType(base string, c revision.Column) string {
	digits, places := c.MaxDigits, c.DecimalPlaces
	if digits <= 0 {
		digits, places = 10, 5
	}
	return fmt.Sprintf("%s(%d,%d)", base, digits, places)
}
