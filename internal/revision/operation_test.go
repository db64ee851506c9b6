package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ksred/tienda-moves/internal/utils"
)

func TestColumnType_Canonical(t *testing.T) {
	tests := map[ColumnType]ColumnType{
		"integer":      TypeInt,
		"smallinteger": TypeSmallInt,
		"binary":       TypeBlob,
		"TEXT":         TypeText,
		" bool ":       TypeBool,
		"primary_key":  TypePrimaryKey,
		"jsonb":        TypeChar,
		"":             TypeChar,
	}
	for in, want := range tests {
		assert.Equal(t, want, in.Canonical(), "token %q", in)
	}
}

func TestOperation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		op      Operation
		wantErr bool
	}{
		{"create table ok", &CreateTable{Table: "t", Columns: []Column{{Name: "id", Type: TypePrimaryKey}}}, false},
		{"create table without columns", &CreateTable{Table: "t"}, true},
		{"create table duplicate column", &CreateTable{Table: "t", Columns: []Column{{Name: "a", Type: TypeText}, {Name: "a", Type: TypeInt}}}, true},
		{"create table two primary keys", &CreateTable{Table: "t", Columns: []Column{{Name: "a", Type: TypePrimaryKey}, {Name: "b", Type: TypeText, PrimaryKey: true}}}, true},
		{"create table empty index", &CreateTable{Table: "t", Columns: []Column{{Name: "a", Type: TypeText}}, Indexes: []Index{{}}}, true},
		{"foreign key without target", &AddColumn{Table: "t", Column: Column{Name: "u_id", Type: TypeForeignKey}}, true},
		{"add primary key column", &AddColumn{Table: "t", Column: Column{Name: "id", Type: TypePrimaryKey}}, true},
		{"add column ok", &AddColumn{Table: "t", Column: Column{Name: "stock", Type: TypeInt, Null: true}}, false},
		{"bad referential action", &AddForeignKey{Table: "t", Column: "c", References: Reference{Table: "u", Column: "id", OnDelete: "EXPLODE"}}, true},
		{"foreign key ok", &AddForeignKey{Table: "t", Column: "c", References: Reference{Table: "u", Column: "id", OnDelete: "cascade"}}, false},
		{"rename column missing to", &RenameColumn{Table: "t", From: "a"}, true},
		{"rename table ok", &RenameTable{From: "a", To: "b"}, false},
		{"drop index needs name", &DropIndex{Table: "t"}, true},
		{"add index needs columns", &AddIndex{Table: "t"}, true},
		{"constraint needs sql", &AddConstraint{Table: "t", Name: "c"}, true},
		{"blank sql", &ExecuteSQL{SQL: "  "}, true},
		{"not null ok", &AddNotNull{Table: "t", Column: "c"}, false},
		{"drop not null missing table", &DropNotNull{Column: "c"}, true},
		{"drop table ok", &DropTable{Table: "t", Cascade: true}, false},
		{"drop column ok", &DropColumn{Table: "t", Column: "c"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.wantErr {
				assert.True(t, utils.IsValidationError(err), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIndexNames(t *testing.T) {
	op := &AddIndex{Table: "comentario", Columns: []string{"usuario_id", "producto_id"}}
	assert.Equal(t, "comentario_usuario_id_producto_id", op.IndexName())

	op.Name = "by_user"
	assert.Equal(t, "by_user", op.IndexName())

	fk := &AddForeignKey{Table: "compra", Column: "cliente_id", References: Reference{Table: "usuario", Column: "username"}}
	assert.Equal(t, "fk_compra_cliente_id_refs_usuario", fk.ConstraintName())
}

func TestNewOperation_AllKinds(t *testing.T) {
	kinds := []Kind{
		KindCreateTable, KindDropTable, KindAddColumn, KindDropColumn, KindRenameColumn,
		KindRenameTable, KindAddNotNull, KindDropNotNull, KindAddIndex, KindDropIndex,
		KindAddConstraint, KindAddForeignKey, KindExecuteSQL,
	}
	for _, k := range kinds {
		op, err := newOperation(k)
		assert.NoError(t, err)
		assert.Equal(t, k, op.Kind())
	}

	_, err := newOperation("nope")
	assert.True(t, utils.IsValidationError(err))
}
