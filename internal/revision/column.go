package revision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ksred/tienda-moves/internal/utils"
)

// ColumnType is a column kind token. Unknown tokens resolve to TypeChar.
type ColumnType string

const (
	TypeBare         ColumnType = "bare"
	TypeBigInteger   ColumnType = "biginteger"
	TypeBlob         ColumnType = "blob"
	TypeBinary       ColumnType = "binary"
	TypeBool         ColumnType = "bool"
	TypeChar         ColumnType = "char"
	TypeDate         ColumnType = "date"
	TypeDateTime     ColumnType = "datetime"
	TypeDecimal      ColumnType = "decimal"
	TypeDouble       ColumnType = "double"
	TypeFixed        ColumnType = "fixed"
	TypeFloat        ColumnType = "float"
	TypeForeignKey   ColumnType = "foreign_key"
	TypeInt          ColumnType = "int"
	TypeInteger      ColumnType = "integer"
	TypePrimaryKey   ColumnType = "primary_key"
	TypeSmallInt     ColumnType = "smallint"
	TypeSmallInteger ColumnType = "smallinteger"
	TypeText         ColumnType = "text"
	TypeTime         ColumnType = "time"
	TypeUUID         ColumnType = "uuid"
	TypeBinUUID      ColumnType = "bin_uuid"
)

var aliases = map[ColumnType]ColumnType{
	TypeInteger:      TypeInt,
	TypeSmallInteger: TypeSmallInt,
	TypeBinary:       TypeBlob,
}

var known = map[ColumnType]bool{
	TypeBare: true, TypeBigInteger: true, TypeBlob: true, TypeBool: true,
	TypeChar: true, TypeDate: true, TypeDateTime: true, TypeDecimal: true,
	TypeDouble: true, TypeFixed: true, TypeFloat: true, TypeForeignKey: true,
	TypeInt: true, TypePrimaryKey: true, TypeSmallInt: true, TypeText: true,
	TypeTime: true, TypeUUID: true, TypeBinUUID: true,
}

// Canonical folds aliases and maps unknown tokens to char.
func (t ColumnType) Canonical() ColumnType {
	token := ColumnType(strings.ToLower(strings.TrimSpace(string(t))))
	if a, ok := aliases[token]; ok {
		return a
	}
	if known[token] {
		return token
	}
	return TypeChar
}

// Column describes one column of a table.
type Column struct {
	Name          string     `yaml:"name" json:"name"`
	Type          ColumnType `yaml:"type" json:"type"`
	Null          bool       `yaml:"null,omitempty" json:"null,omitempty"`
	Unique        bool       `yaml:"unique,omitempty" json:"unique,omitempty"`
	Index         bool       `yaml:"index,omitempty" json:"index,omitempty"`
	PrimaryKey    bool       `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	Default       *string    `yaml:"default,omitempty" json:"default,omitempty"`
	MaxLength     int        `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	MaxDigits     int        `yaml:"max_digits,omitempty" json:"max_digits,omitempty"`
	DecimalPlaces int        `yaml:"decimal_places,omitempty" json:"decimal_places,omitempty"`
	Constraints   []string   `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	References    *Reference `yaml:"references,omitempty" json:"references,omitempty"`
}

// IsPrimaryKey reports whether the column is the table's primary key.
func (c *Column) IsPrimaryKey() bool {
	return c.PrimaryKey || c.Type.Canonical() == TypePrimaryKey
}

// Validate checks the column definition on its own.
func (c *Column) Validate() error {
	if c.Name == "" {
		return utils.RequiredFieldError("column.name")
	}
	if c.Type == "" {
		return utils.InvalidFieldError("column.type", fmt.Sprintf("column %s has no type", c.Name))
	}
	if c.MaxLength < 0 || c.MaxDigits < 0 || c.DecimalPlaces < 0 {
		return utils.InvalidFieldError("column", fmt.Sprintf("column %s has a negative size", c.Name))
	}
	if c.Type.Canonical() == TypeForeignKey && c.References == nil {
		return utils.InvalidFieldError("column.references", fmt.Sprintf("foreign key %s has no target", c.Name))
	}
	if c.References != nil {
		return c.References.Validate()
	}
	return nil
}

// Reference is the target of a foreign key.
type Reference struct {
	Table    string `yaml:"table" json:"table"`
	Column   string `yaml:"column" json:"column"`
	OnDelete string `yaml:"on_delete,omitempty" json:"on_delete,omitempty"`
	OnUpdate string `yaml:"on_update,omitempty" json:"on_update,omitempty"`
}

var referentialActions = map[string]bool{
	"":            true,
	"CASCADE":     true,
	"RESTRICT":    true,
	"SET NULL":    true,
	"SET DEFAULT": true,
	"NO ACTION":   true,
}

func (r *Reference) Validate() error {
	if r.Table == "" || r.Column == "" {
		return utils.InvalidFieldError("references", "foreign key target needs a table and a column")
	}
	for _, action := range []string{r.OnDelete, r.OnUpdate} {
		if !referentialActions[strings.ToUpper(action)] {
			return utils.InvalidFieldError("references", fmt.Sprintf("unknown referential action %q", action))
		}
	}
	return nil
}

// Index is a table index declared inside create_table.
type Index struct {
	Name    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Columns []string `yaml:"columns" json:"columns"`
	Unique  bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
