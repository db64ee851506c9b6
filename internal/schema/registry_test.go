package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/tienda-moves/internal/models"
	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

func names(entities []*Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Name
	}
	return out
}

func columnNames(columns []revision.Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Name
	}
	return out
}

func TestRegistry_Define(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Define("Blog", " Post ", func(t *Table) {
		t.Text("title", Unique()).Int("views", Default("0"))
	}))

	e, err := r.Lookup("blog.post")
	require.NoError(t, err)
	assert.Equal(t, "blog.post", e.Qualified())
	assert.Equal(t, []string{"id", "title", "views"}, columnNames(e.columns))
	assert.Equal(t, "id", e.PrimaryKey().Name)

	err = r.Define("blog", "post", func(t *Table) { t.Text("x") })
	assert.True(t, utils.IsConflictError(err))

	err = r.Define("blog", "", func(t *Table) {})
	assert.True(t, utils.IsValidationError(err))

	err = r.Define("blog", "dup", func(t *Table) { t.Text("a").Int("a") })
	assert.True(t, utils.IsValidationError(err))

	err = r.Define("blog", "noindex", func(t *Table) { t.Index(false) })
	assert.True(t, utils.IsValidationError(err))
}

func TestRegistry_UserModel(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("app", "user", func(t *Table) {
		t.Text("email", PrimaryKey(), Unique()).
			Text("name").
			Text("address").
			Text("phone").
			Text("password")
	}))

	entities, err := r.Resolve("user")
	require.NoError(t, err)
	require.Len(t, entities, 1)

	op, err := r.CreateTable(entities[0])
	require.NoError(t, err)
	assert.Equal(t, "user", op.Table)
	require.Len(t, op.Columns, 5)
	for _, c := range op.Columns {
		assert.Equal(t, revision.TypeText, c.Type)
	}
	assert.True(t, op.Columns[0].IsPrimaryKey())
	assert.Equal(t, "email", op.Columns[0].Name)

	down := r.Downgrade(entities[0])
	require.Len(t, down, 1)
	assert.Equal(t, &revision.DropTable{Table: "user"}, down[0].Operation)
}

func TestRegistry_ForeignKeys(t *testing.T) {
	r := Builtin()

	e, err := r.Lookup("tienda.comentario")
	require.NoError(t, err)

	columns, err := r.Columns(e)
	require.NoError(t, err)
	assert.Equal(t, []string{"id_comentario", "usuario_id", "producto_id", "comentario", "calificacion"}, columnNames(columns))

	usuario := columns[1]
	assert.Equal(t, revision.TypeText, usuario.Type)
	assert.True(t, usuario.Index)
	require.NotNil(t, usuario.References)
	assert.Equal(t, revision.Reference{Table: "usuario", Column: "username"}, *usuario.References)

	producto := columns[2]
	assert.Equal(t, revision.TypeInt, producto.Type)
	assert.Equal(t, revision.Reference{Table: "producto", Column: "id_producto"}, *producto.References)

	detalle, err := r.Lookup("detallecompra")
	require.NoError(t, err)
	columns, err = r.Columns(detalle)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "compra_id", "producto_id", "costo"}, columnNames(columns))
	assert.Equal(t, "compra", columns[1].References.Table)
}

func TestRegistry_ForeignKeyOptions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("shop", "order", func(t *Table) { t.Int("total") }))
	require.NoError(t, r.Define("shop", "line", func(t *Table) {
		t.ForeignKey("order", "shop.order", OnDelete("cascade"), Null())
	}))

	line, err := r.Lookup("line")
	require.NoError(t, err)
	columns, err := r.Columns(line)
	require.NoError(t, err)

	fk := columns[1]
	assert.True(t, fk.Null)
	assert.Equal(t, revision.TypeInt, fk.Type)
	assert.Equal(t, "cascade", fk.References.OnDelete)
	assert.Equal(t, "id", fk.References.Column)
}

func TestRegistry_Resolve(t *testing.T) {
	r := Builtin()

	entities, err := r.Resolve("tienda")
	require.NoError(t, err)
	assert.Equal(t, []string{"usuario", "producto", "comentario", "compra", "detallecompra", "listadeseos"}, names(entities))

	entities, err = r.Resolve("Tienda.Usuario")
	require.NoError(t, err)
	assert.Equal(t, []string{"usuario"}, names(entities))

	_, err = r.Resolve("missing")
	assert.True(t, utils.IsNotFoundError(err))

	_, err = r.Resolve("")
	assert.True(t, utils.IsValidationError(err))
}

func TestRegistry_ResolveAmbiguous(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("a", "item", func(t *Table) { t.Text("x") }))
	require.NoError(t, r.Define("b", "item", func(t *Table) { t.Text("y") }))

	_, err := r.Resolve("item")
	assert.True(t, utils.IsAmbiguousError(err))

	entities, err := r.Resolve("b.item")
	require.NoError(t, err)
	assert.Equal(t, "b", entities[0].Module)
}

func TestRegistry_SortDependenciesFirst(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("m", "child", func(t *Table) { t.ForeignKey("parent", "parent") }))
	require.NoError(t, r.Define("m", "other", func(t *Table) { t.Text("x") }))
	require.NoError(t, r.Define("m", "parent", func(t *Table) { t.ForeignKey("root", "root") }))
	require.NoError(t, r.Define("m", "root", func(t *Table) { t.Text("name") }))

	entities, err := r.Resolve("m")
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "parent", "child", "other"}, names(entities))
}

func TestRegistry_SortCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("m", "a", func(t *Table) { t.ForeignKey("b", "b") }))
	require.NoError(t, r.Define("m", "b", func(t *Table) { t.ForeignKey("a", "a") }))

	_, err := r.Resolve("m")
	require.Error(t, err)
	assert.True(t, utils.IsValidationError(err))
	assert.Contains(t, err.Error(), "cycle")
}

func TestRegistry_SortCyclePath(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("m", "a", func(t *Table) { t.ForeignKey("b", "b") }))
	require.NoError(t, r.Define("m", "b", func(t *Table) { t.ForeignKey("d", "d").ForeignKey("c", "c") }))
	require.NoError(t, r.Define("m", "c", func(t *Table) { t.ForeignKey("a", "a") }))
	require.NoError(t, r.Define("m", "d", func(t *Table) { t.Text("leaf") }))

	_, err := r.Resolve("m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m.a -> m.b -> m.c -> m.a")
}

func TestRegistry_SelfReference(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("m", "node", func(t *Table) { t.ForeignKey("parent", "node", Null()) }))

	entities, err := r.Resolve("m")
	require.NoError(t, err)
	assert.Equal(t, []string{"node"}, names(entities))
}

func TestRegistry_UnknownForeignKeyTarget(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define("m", "orphan", func(t *Table) { t.ForeignKey("ghost", "ghost") }))

	e, err := r.Lookup("orphan")
	require.NoError(t, err)
	_, err = r.Upgrade(e)
	assert.True(t, utils.IsNotFoundError(err))
}

func TestTienda_MatchesModels(t *testing.T) {
	r := Builtin()
	entities, err := r.Resolve(TiendaModule)
	require.NoError(t, err)

	tables := make([]string, 0, len(models.TiendaModels()))
	for _, m := range models.TiendaModels() {
		tabler, ok := m.(interface{ TableName() string })
		require.True(t, ok)
		tables = append(tables, tabler.TableName())
	}
	assert.Equal(t, tables, names(entities))

	for _, e := range entities {
		steps, err := r.Upgrade(e)
		require.NoError(t, err, e.Name)
		require.Len(t, steps, 1)
		assert.Equal(t, revision.KindCreateTable, steps[0].Kind())
	}
}
