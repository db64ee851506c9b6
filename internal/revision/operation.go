package revision

import (
	"fmt"
	"strings"

	"github.com/ksred/tienda-moves/internal/utils"
)

// Kind tags a schema operation inside a revision file.
type Kind string

const (
	KindCreateTable   Kind = "create_table"
	KindDropTable     Kind = "drop_table"
	KindAddColumn     Kind = "add_column"
	KindDropColumn    Kind = "drop_column"
	KindRenameColumn  Kind = "rename_column"
	KindRenameTable   Kind = "rename_table"
	KindAddNotNull    Kind = "add_not_null"
	KindDropNotNull   Kind = "drop_not_null"
	KindAddIndex      Kind = "add_index"
	KindDropIndex     Kind = "drop_index"
	KindAddConstraint Kind = "add_constraint"
	KindAddForeignKey Kind = "add_foreign_key"
	KindExecuteSQL    Kind = "execute_sql"
)

// Operation is one primitive schema change. Implementations are plain data;
// the migrator interprets them against a live connection.
type Operation interface {
	Kind() Kind
	Validate() error
}

// newOperation returns an empty operation for kind, ready to be decoded into.
func newOperation(kind Kind) (Operation, error) {
	switch kind {
	case KindCreateTable:
		return &CreateTable{}, nil
	case KindDropTable:
		return &DropTable{}, nil
	case KindAddColumn:
		return &AddColumn{}, nil
	case KindDropColumn:
		return &DropColumn{}, nil
	case KindRenameColumn:
		return &RenameColumn{}, nil
	case KindRenameTable:
		return &RenameTable{}, nil
	case KindAddNotNull:
		return &AddNotNull{}, nil
	case KindDropNotNull:
		return &DropNotNull{}, nil
	case KindAddIndex:
		return &AddIndex{}, nil
	case KindDropIndex:
		return &DropIndex{}, nil
	case KindAddConstraint:
		return &AddConstraint{}, nil
	case KindAddForeignKey:
		return &AddForeignKey{}, nil
	case KindExecuteSQL:
		return &ExecuteSQL{}, nil
	}
	return nil, utils.InvalidFieldError("op", fmt.Sprintf("unknown operation %q", kind))
}

// CreateTable creates a table with its columns, indexes and table constraints.
type CreateTable struct {
	Table       string   `yaml:"table" json:"table"`
	Safe        bool     `yaml:"safe,omitempty" json:"safe,omitempty"`
	Columns     []Column `yaml:"columns" json:"columns"`
	Indexes     []Index  `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	Constraints []string `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

func (o *CreateTable) Kind() Kind { return KindCreateTable }

func (o *CreateTable) Validate() error {
	if o.Table == "" {
		return utils.RequiredFieldError("table")
	}
	if len(o.Columns) == 0 {
		return utils.InvalidFieldError("columns", fmt.Sprintf("table %s has no columns", o.Table))
	}
	seen := make(map[string]bool, len(o.Columns))
	pks := 0
	for i := range o.Columns {
		c := &o.Columns[i]
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Name] {
			return utils.InvalidFieldError("columns", fmt.Sprintf("duplicate column %s.%s", o.Table, c.Name))
		}
		seen[c.Name] = true
		if c.IsPrimaryKey() {
			pks++
		}
	}
	if pks > 1 {
		return utils.InvalidFieldError("columns", fmt.Sprintf("table %s declares %d primary keys", o.Table, pks))
	}
	for _, idx := range o.Indexes {
		if len(idx.Columns) == 0 {
			return utils.InvalidFieldError("indexes", fmt.Sprintf("index on %s has no columns", o.Table))
		}
	}
	return nil
}

// DropTable drops a table.
type DropTable struct {
	Table   string `yaml:"table" json:"table"`
	Safe    bool   `yaml:"safe,omitempty" json:"safe,omitempty"`
	Cascade bool   `yaml:"cascade,omitempty" json:"cascade,omitempty"`
}

func (o *DropTable) Kind() Kind { return KindDropTable }

func (o *DropTable) Validate() error {
	if o.Table == "" {
		return utils.RequiredFieldError("table")
	}
	return nil
}

// AddColumn adds one column to an existing table.
type AddColumn struct {
	Table  string `yaml:"table" json:"table"`
	Column Column `yaml:"column" json:"column"`
}

func (o *AddColumn) Kind() Kind { return KindAddColumn }

func (o *AddColumn) Validate() error {
	if o.Table == "" {
		return utils.RequiredFieldError("table")
	}
	if o.Column.IsPrimaryKey() {
		return utils.InvalidFieldError("column", "cannot add a primary key column to an existing table")
	}
	return o.Column.Validate()
}

// DropColumn removes a column.
type DropColumn struct {
	Table   string `yaml:"table" json:"table"`
	Column  string `yaml:"column" json:"column"`
	Cascade bool   `yaml:"cascade,omitempty" json:"cascade,omitempty"`
}

func (o *DropColumn) Kind() Kind { return KindDropColumn }

func (o *DropColumn) Validate() error {
	return requireAll(map[string]string{"table": o.Table, "column": o.Column})
}

// RenameColumn renames a column in place.
type RenameColumn struct {
	Table string `yaml:"table" json:"table"`
	From  string `yaml:"from" json:"from"`
	To    string `yaml:"to" json:"to"`
}

func (o *RenameColumn) Kind() Kind { return KindRenameColumn }

func (o *RenameColumn) Validate() error {
	return requireAll(map[string]string{"table": o.Table, "from": o.From, "to": o.To})
}

// RenameTable renames a table.
type RenameTable struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

func (o *RenameTable) Kind() Kind { return KindRenameTable }

func (o *RenameTable) Validate() error {
	return requireAll(map[string]string{"from": o.From, "to": o.To})
}

// AddNotNull makes a column non-nullable.
type AddNotNull struct {
	Table  string `yaml:"table" json:"table"`
	Column string `yaml:"column" json:"column"`
}

func (o *AddNotNull) Kind() Kind { return KindAddNotNull }

func (o *AddNotNull) Validate() error {
	return requireAll(map[string]string{"table": o.Table, "column": o.Column})
}

// DropNotNull makes a column nullable.
type DropNotNull struct {
	Table  string `yaml:"table" json:"table"`
	Column string `yaml:"column" json:"column"`
}

func (o *DropNotNull) Kind() Kind { return KindDropNotNull }

func (o *DropNotNull) Validate() error {
	return requireAll(map[string]string{"table": o.Table, "column": o.Column})
}

// AddIndex creates an index. An empty name becomes <table>_<columns>.
type AddIndex struct {
	Table   string   `yaml:"table" json:"table"`
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Columns []string `yaml:"columns" json:"columns"`
	Unique  bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
}

func (o *AddIndex) Kind() Kind { return KindAddIndex }

func (o *AddIndex) Validate() error {
	if o.Table == "" {
		return utils.RequiredFieldError("table")
	}
	if len(o.Columns) == 0 {
		return utils.RequiredFieldError("columns")
	}
	return nil
}

// IndexName returns the explicit or derived index name.
func (o *AddIndex) IndexName() string {
	if o.Name != "" {
		return o.Name
	}
	return DefaultIndexName(o.Table, o.Columns)
}

// DropIndex drops an index by name.
type DropIndex struct {
	Table string `yaml:"table,omitempty" json:"table,omitempty"`
	Name  string `yaml:"name" json:"name"`
}

func (o *DropIndex) Kind() Kind { return KindDropIndex }

func (o *DropIndex) Validate() error {
	if o.Name == "" {
		return utils.RequiredFieldError("name")
	}
	return nil
}

// AddConstraint adds a named table constraint given as raw SQL, e.g. CHECK (precio >= 0).
type AddConstraint struct {
	Table string `yaml:"table" json:"table"`
	Name  string `yaml:"name" json:"name"`
	SQL   string `yaml:"sql" json:"sql"`
}

func (o *AddConstraint) Kind() Kind { return KindAddConstraint }

func (o *AddConstraint) Validate() error {
	return requireAll(map[string]string{"table": o.Table, "name": o.Name, "sql": o.SQL})
}

// AddForeignKey turns an existing column into a foreign key.
type AddForeignKey struct {
	Table      string    `yaml:"table" json:"table"`
	Column     string    `yaml:"column" json:"column"`
	References Reference `yaml:"references" json:"references"`
}

func (o *AddForeignKey) Kind() Kind { return KindAddForeignKey }

func (o *AddForeignKey) Validate() error {
	if err := requireAll(map[string]string{"table": o.Table, "column": o.Column}); err != nil {
		return err
	}
	return o.References.Validate()
}

// ConstraintName is the name the foreign key constraint is created under.
func (o *AddForeignKey) ConstraintName() string {
	return fmt.Sprintf("fk_%s_%s_refs_%s", o.Table, o.Column, o.References.Table)
}

// ExecuteSQL runs a raw statement with optional positional parameters.
type ExecuteSQL struct {
	SQL    string        `yaml:"sql" json:"sql"`
	Params []interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

func (o *ExecuteSQL) Kind() Kind { return KindExecuteSQL }

func (o *ExecuteSQL) Validate() error {
	if strings.TrimSpace(o.SQL) == "" {
		return utils.RequiredFieldError("sql")
	}
	return nil
}

// DefaultIndexName derives an index name from its table and columns.
func DefaultIndexName(table string, columns []string) string {
	return table + "_" + strings.Join(columns, "_")
}

func requireAll(fields map[string]string) error {
	for _, name := range sortedKeys(fields) {
		if fields[name] == "" {
			return utils.RequiredFieldError(name)
		}
	}
	return nil
}
