package schema

import (
	"fmt"

	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

// Option adjusts a column declared on a Table
type Option func(c *revision.Column)

// Null allows NULL values
func Null() Option {
	return func(c *revision.Column) { c.Null = true }
}

// Unique adds a unique constraint
func Unique() Option {
	return func(c *revision.Column) { c.Unique = true }
}

// Indexed adds a plain index on the column
func Indexed() Option {
	return func(c *revision.Column) { c.Index = true }
}

// PrimaryKey marks the column as the table's primary key
func PrimaryKey() Option {
	return func(c *revision.Column) { c.PrimaryKey = true }
}

// Default sets a literal SQL default
func Default(sql string) Option {
	return func(c *revision.Column) { c.Default = &sql }
}

// MaxLength sets the size of a char column
func MaxLength(n int) Option {
	return func(c *revision.Column) { c.MaxLength = n }
}

// Precision sets the digits of a decimal column
func Precision(digits, places int) Option {
	return func(c *revision.Column) {
		c.MaxDigits = digits
		c.DecimalPlaces = places
	}
}

// Check appends a column CHECK constraint
func Check(expr string) Option {
	return func(c *revision.Column) { c.Constraints = append(c.Constraints, fmt.Sprintf("CHECK (%s)", expr)) }
}

// OnDelete sets the referential action of a foreign key on delete
func OnDelete(action string) Option {
	return func(c *revision.Column) {
		if c.References != nil {
			c.References.OnDelete = action
		}
	}
}

// OnUpdate sets the referential action of a foreign key on update
func OnUpdate(action string) Option {
	return func(c *revision.Column) {
		if c.References != nil {
			c.References.OnUpdate = action
		}
	}
}

// Table declares the columns of an entity inside Registry.Define
type Table struct {
	entity *Entity
	err    error
}

// Column declares a column of any kind
func (t *Table) Column(name string, kind revision.ColumnType, opts ...Option) *Table {
	c := revision.Column{Name: name, Type: kind}
	for _, opt := range opts {
		opt(&c)
	}
	t.add(c)
	return t
}

func (t *Table) add(c revision.Column) {
	if t.err != nil {
		return
	}
	if err := c.Validate(); err != nil {
		t.err = err
		return
	}
	for _, existing := range t.entity.columns {
		if existing.Name == c.Name {
			t.err = utils.InvalidFieldError("columns", fmt.Sprintf("duplicate column %s", c.Name))
			return
		}
	}
	t.entity.columns = append(t.entity.columns, c)
}

// AutoKey declares an auto-incrementing integer primary key
func (t *Table) AutoKey(name string) *Table {
	return t.Column(name, revision.TypePrimaryKey)
}

// Text declares a text column
func (t *Table) Text(name string, opts ...Option) *Table {
	return t.Column(name, revision.TypeText, opts...)
}

// Char declares a varchar column
func (t *Table) Char(name string, opts ...Option) *Table {
	return t.Column(name, revision.TypeChar, opts...)
}

// Int declares an integer column
func (t *Table) Int(name string, opts ...Option) *Table {
	return t.Column(name, revision.TypeInt, opts...)
}

// Bool declares a boolean column
func (t *Table) Bool(name string, opts ...Option) *Table {
	return t.Column(name, revision.TypeBool, opts...)
}

// Date declares a date column
func (t *Table) Date(name string, opts ...Option) *Table {
	return t.Column(name, revision.TypeDate, opts...)
}

// DateTime declares a timestamp column
func (t *Table) DateTime(name string, opts ...Option) *Table {
	return t.Column(name, revision.TypeDateTime, opts...)
}

// Decimal declares a fixed-point column
func (t *Table) Decimal(name string, opts ...Option) *Table {
	return t.Column(name, revision.TypeDecimal, opts...)
}

// ForeignKey declares column <name>_id referencing the primary key of
// target, an entity of the same module or "module.entity". The column type
// follows the target's key and is indexed.
func (t *Table) ForeignKey(name, target string, opts ...Option) *Table {
	if t.err != nil {
		return t
	}
	if target == "" {
		t.err = utils.RequiredFieldError("references")
		return t
	}

	c := revision.Column{
		Name:       name + "_id",
		Type:       revision.TypeForeignKey,
		Index:      true,
		References: &revision.Reference{Table: target, Column: "id"},
	}
	for _, opt := range opts {
		opt(&c)
	}
	t.add(c)
	if t.err == nil {
		t.entity.foreignKeys[len(t.entity.columns)-1] = target
	}
	return t
}

// Index declares a multi-column index
func (t *Table) Index(unique bool, columns ...string) *Table {
	if t.err != nil {
		return t
	}
	if len(columns) == 0 {
		t.err = utils.InvalidFieldError("indexes", "index has no columns")
		return t
	}
	t.entity.indexes = append(t.entity.indexes, revision.Index{Columns: columns, Unique: unique})
	return t
}

// Constraint appends a raw table constraint such as "CHECK (total >= 0)"
func (t *Table) Constraint(sql string) *Table {
	if t.err == nil {
		t.entity.constraints = append(t.entity.constraints, sql)
	}
	return t
}
