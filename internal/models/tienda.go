package models

import (
	"time"
)

// Roles a storefront user can hold
const (
	RolCliente    = 0
	RolAdmin      = 1
	RolSuperAdmin = 2
)

// Usuario is a storefront account; the username is an email address
type Usuario struct {
	Username  string `gorm:"column:username;primaryKey" json:"username"`
	Nombre    string `gorm:"column:nombre;not null" json:"nombre"`
	Rol       int    `gorm:"column:rol;not null" json:"rol"`
	Direccion string `gorm:"column:direccion;not null" json:"direccion"`
	Telefono  string `gorm:"column:telefono;not null" json:"telefono"`
	Clave     string `gorm:"column:clave;not null" json:"-"`
}

// TableName ensures consistent table naming
func (Usuario) TableName() string {
	return "usuario"
}

// Producto is an item of the catalogue
type Producto struct {
	IDProducto           uint   `gorm:"column:id_producto;primaryKey" json:"id_producto"`
	NombreProducto       string `gorm:"column:nombre_producto;not null" json:"nombre_producto"`
	Precio               int    `gorm:"column:precio;not null" json:"precio"`
	Descripcion          string `gorm:"column:descripcion;not null" json:"descripcion"`
	DescripcionDetallada string `gorm:"column:descripcion_detallada;not null" json:"descripcion_detallada"`
	PathImagen           string `gorm:"column:path_imagen;not null" json:"path_imagen"`
	Cantidad             int    `gorm:"column:cantidad;not null" json:"cantidad"`
	UnidadMedida         string `gorm:"column:unidad_medida;not null" json:"unidad_medida"`
}

// TableName ensures consistent table naming
func (Producto) TableName() string {
	return "producto"
}

// Comentario is a rated review of a product by a user
type Comentario struct {
	IDComentario uint   `gorm:"column:id_comentario;primaryKey" json:"id_comentario"`
	UsuarioID    string `gorm:"column:usuario_id;not null;index" json:"usuario_id"`
	ProductoID   uint   `gorm:"column:producto_id;not null;index" json:"producto_id"`
	Comentario   string `gorm:"column:comentario;not null" json:"comentario"`
	Calificacion int    `gorm:"column:calificacion;not null" json:"calificacion"`
}

// TableName ensures consistent table naming
func (Comentario) TableName() string {
	return "comentario"
}

// Compra is a purchase made by a client
type Compra struct {
	IDCompra  uint      `gorm:"column:id_compra;primaryKey" json:"id_compra"`
	ClienteID string    `gorm:"column:cliente_id;not null;index" json:"cliente_id"`
	Total     int       `gorm:"column:total;not null" json:"total"`
	Fecha     time.Time `gorm:"column:fecha;type:date;not null" json:"fecha"`
}

// TableName ensures consistent table naming
func (Compra) TableName() string {
	return "compra"
}

// DetalleCompra is one product line of a purchase
type DetalleCompra struct {
	ID         uint `gorm:"column:id;primaryKey" json:"id"`
	CompraID   uint `gorm:"column:compra_id;not null;index" json:"compra_id"`
	ProductoID uint `gorm:"column:producto_id;not null;index" json:"producto_id"`
	Costo      int  `gorm:"column:costo;not null" json:"costo"`
}

// TableName ensures consistent table naming
func (DetalleCompra) TableName() string {
	return "detallecompra"
}

// ListaDeseos links a user to a product they want
type ListaDeseos struct {
	ID         uint   `gorm:"column:id;primaryKey" json:"id"`
	UsuarioID  string `gorm:"column:usuario_id;not null;index" json:"usuario_id"`
	ProductoID uint   `gorm:"column:producto_id;not null;index" json:"producto_id"`
}

// TableName ensures consistent table naming
func (ListaDeseos) TableName() string {
	return "listadeseos"
}

// TiendaModels lists the storefront models in dependency order
func TiendaModels() []interface{} {
	return []interface{}{
		&Usuario{},
		&Producto{},
		&Comentario{},
		&Compra{},
		&DetalleCompra{},
		&ListaDeseos{},
	}
}
