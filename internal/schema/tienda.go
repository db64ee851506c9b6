package schema

// TiendaModule is the storefront module name
const TiendaModule = "tienda"

// RegisterTienda declares the storefront tables. Column names and types
// match the gorm models in internal/models.
func RegisterTienda(r *Registry) error {
	definitions := []struct {
		name  string
		build func(t *Table)
	}{
		{"usuario", func(t *Table) {
			t.Text("username", PrimaryKey()).
				Text("nombre").
				Int("rol").
				Text("direccion").
				Text("telefono").
				Text("clave")
		}},
		{"producto", func(t *Table) {
			t.AutoKey("id_producto").
				Text("nombre_producto").
				Int("precio").
				Text("descripcion").
				Text("descripcion_detallada").
				Text("path_imagen").
				Int("cantidad").
				Text("unidad_medida")
		}},
		{"comentario", func(t *Table) {
			t.AutoKey("id_comentario").
				ForeignKey("usuario", "usuario").
				ForeignKey("producto", "producto").
				Text("comentario").
				Int("calificacion")
		}},
		{"compra", func(t *Table) {
			t.AutoKey("id_compra").
				ForeignKey("cliente", "usuario").
				Int("total").
				Date("fecha")
		}},
		{"detallecompra", func(t *Table) {
			t.ForeignKey("compra", "compra").
				ForeignKey("producto", "producto").
				Int("costo")
		}},
		{"listadeseos", func(t *Table) {
			t.ForeignKey("usuario", "usuario").
				ForeignKey("producto", "producto")
		}},
	}

	for _, d := range definitions {
		if err := r.Define(TiendaModule, d.name, d.build); err != nil {
			return err
		}
	}
	return nil
}

// Builtin returns a registry holding every built-in module
func Builtin() *Registry {
	r := NewRegistry()
	if err := RegisterTienda(r); err != nil {
		panic(err)
	}
	return r
}
