package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/models"
	"github.com/ksred/tienda-moves/internal/utils"
)

// DefaultPassword is the clave of every seeded account
const DefaultPassword = "Pass123"

// SeedReport counts the rows a seed run inserted and the rows it found
type SeedReport struct {
	Created  map[string]int `json:"created"`
	Existing map[string]int `json:"existing"`
}

func (r *SeedReport) add(table string, created bool) {
	if created {
		r.Created[table]++
	} else {
		r.Existing[table]++
	}
}

// SeedService inserts the storefront's default data
type SeedService struct {
	db     *gorm.DB
	logger zerolog.Logger
	cost   int
	now    func() time.Time
}

// NewSeedService creates a new instance of SeedService
func NewSeedService(db *gorm.DB, logger zerolog.Logger) *SeedService {
	return &SeedService{
		db:     db,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// WithCost sets the bcrypt cost used for seeded passwords
func (s *SeedService) WithCost(cost int) *SeedService {
	s.cost = cost
	return s
}

// Seed inserts the default users, products, comments, purchases and wish
// list in one transaction. Rows that already exist are left untouched, so
// running it twice inserts nothing the second time.
func (s *SeedService) Seed(ctx context.Context) (*SeedReport, error) {
	report := &SeedReport{Created: map[string]int{}, Existing: map[string]int{}}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		usuarios := []*models.Usuario{
			{Username: "user@rs.com", Nombre: "Cliente Perez", Rol: models.RolCliente, Direccion: "Calle 1A #25c-33", Telefono: "3133545648"},
			{Username: "admin@rs.com", Nombre: "Administrador Perez", Rol: models.RolAdmin, Direccion: "Calle 1A #25c-34", Telefono: "3133545648"},
			{Username: "super@rs.com", Nombre: "Super Administrador Perez", Rol: models.RolSuperAdmin, Direccion: "Calle 1A #25c-33", Telefono: "3133545649"},
		}
		for _, u := range usuarios {
			u.Clave = string(hash)
			created, err := getOrCreate(tx, u, "username")
			if err != nil {
				return err
			}
			report.add(u.TableName(), created)
		}
		cliente := usuarios[0]

		productos := []*models.Producto{
			{NombreProducto: "Computador HP", Precio: 2000000, Descripcion: "Producto en excelente estado con Intel Core I9", DescripcionDetallada: "Producto en excelente estado con Intel Core I9, 1000GB SSD, 16GB RAM", PathImagen: "producto0.jpg", Cantidad: 10, UnidadMedida: "Unidades"},
			{NombreProducto: "Computador M1", Precio: 1500000, Descripcion: "Producto en excelente estado con Intel Core I7", DescripcionDetallada: "Producto en excelente estado con Intel Core I7, 500GB SSD, 12GB RAM", PathImagen: "producto1.jpg", Cantidad: 20, UnidadMedida: "Unidades"},
			{NombreProducto: "Computador M2", Precio: 1400000, Descripcion: "Producto en excelente estado con Intel Core I5", DescripcionDetallada: "Producto en excelente estado con Intel Core I5, 500GB SSD, 12GB RAM", PathImagen: "producto2.jpg", Cantidad: 100, UnidadMedida: "Unidades"},
			{NombreProducto: "Computador M3", Precio: 1200000, Descripcion: "Producto en excelente estado con Intel Core I3", DescripcionDetallada: "Producto en excelente estado con Intel Core I3, 500GB SSD, 12GB RAM", PathImagen: "producto3.jpg", Cantidad: 98, UnidadMedida: "Unidades"},
		}
		for _, p := range productos {
			created, err := getOrCreate(tx, p, "nombre_producto")
			if err != nil {
				return err
			}
			report.add(p.TableName(), created)
		}

		comentarios := []*models.Comentario{
			{UsuarioID: cliente.Username, ProductoID: productos[0].IDProducto, Comentario: "Excelente producto", Calificacion: 5},
			{UsuarioID: cliente.Username, ProductoID: productos[1].IDProducto, Comentario: "Me gustó producto", Calificacion: 4},
		}
		for _, c := range comentarios {
			created, err := getOrCreate(tx, c, "usuario_id", "producto_id", "comentario")
			if err != nil {
				return err
			}
			report.add(c.TableName(), created)
		}

		today := s.now().UTC().Truncate(24 * time.Hour)
		compras := []*models.Compra{
			{ClienteID: cliente.Username, Total: 100000, Fecha: today},
			{ClienteID: cliente.Username, Total: 200000, Fecha: today},
		}
		for _, c := range compras {
			created, err := getOrCreate(tx, c, "cliente_id", "total")
			if err != nil {
				return err
			}
			report.add(c.TableName(), created)
		}

		detalles := []*models.DetalleCompra{
			{CompraID: compras[0].IDCompra, ProductoID: productos[0].IDProducto, Costo: 15000},
			{CompraID: compras[0].IDCompra, ProductoID: productos[1].IDProducto, Costo: 15000},
			{CompraID: compras[1].IDCompra, ProductoID: productos[2].IDProducto, Costo: 50000},
		}
		for _, d := range detalles {
			created, err := getOrCreate(tx, d, "compra_id", "producto_id", "costo")
			if err != nil {
				return err
			}
			report.add(d.TableName(), created)
		}

		deseo := &models.ListaDeseos{UsuarioID: cliente.Username, ProductoID: productos[0].IDProducto}
		created, err := getOrCreate(tx, deseo, "usuario_id", "producto_id")
		if err != nil {
			return err
		}
		report.add(deseo.TableName(), created)
		return nil
	})
	if err != nil {
		return nil, utils.WrapDatabaseError("seed", err)
	}

	s.logger.Info().
		Interface("created", report.Created).
		Interface("existing", report.Existing).
		Msg("Seed data applied")
	return report, nil
}

// getOrCreate loads the row matching row's key columns into row, inserting
// row when there is none. It reports whether a row was inserted.
func getOrCreate[T any](tx *gorm.DB, row *T, keys ...string) (bool, error) {
	fields := make([]interface{}, len(keys))
	for i, k := range keys {
		fields[i] = k
	}

	var found T
	err := tx.Where(row, fields...).First(&found).Error
	if err == nil {
		*row = found
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := tx.Create(row).Error; err != nil {
		return false, err
	}
	return true, nil
}
