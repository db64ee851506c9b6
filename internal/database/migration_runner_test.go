package database

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/migrator"
	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

type runnerFixture struct {
	runner *MigrationRunner
	store  *revision.Store
	ledger *Ledger
	db     *gorm.DB
}

func setupTestRunner(t *testing.T) *runnerFixture {
	ledger, db := setupTestLedger(t)

	store, err := revision.NewStore(afero.NewMemMapFs(), "migrations")
	require.NoError(t, err)

	m, err := migrator.New(db)
	require.NoError(t, err)

	return &runnerFixture{
		runner: NewMigrationRunner(store, ledger, m, utils.NopLogger()),
		store:  store,
		ledger: ledger,
		db:     db,
	}
}

func (f *runnerFixture) write(t *testing.T, id string, upgrade, downgrade []revision.Step) {
	require.NoError(t, f.store.Write(&revision.Revision{
		ID:        id,
		Name:      id,
		CreatedAt: time.Now().UTC(),
		Upgrade:   upgrade,
		Downgrade: downgrade,
	}))
}

func productoTable() *revision.CreateTable {
	return &revision.CreateTable{
		Table: "producto",
		Columns: []revision.Column{
			{Name: "id_producto", Type: revision.TypePrimaryKey},
			{Name: "nombre_producto", Type: revision.TypeText},
			{Name: "precio", Type: revision.TypeInt},
		},
	}
}

func TestMigrationRunner_UpgradeAndDowngrade(t *testing.T) {
	f := setupTestRunner(t)
	ctx := context.Background()

	f.write(t, "0001_create_table_producto",
		revision.Steps(productoTable()),
		revision.Steps(&revision.DropTable{Table: "producto"}))

	assert.True(t, f.runner.Run(ctx, "0001_create_table_producto", revision.Upgrade, false))
	assert.True(t, f.db.Migrator().HasTable("producto"))

	applied, err := f.ledger.IsApplied(ctx, "0001_create_table_producto")
	require.NoError(t, err)
	assert.True(t, applied)

	assert.True(t, f.runner.Run(ctx, "0001_create_table_producto", revision.Downgrade, false))
	assert.False(t, f.db.Migrator().HasTable("producto"))

	applied, err = f.ledger.IsApplied(ctx, "0001_create_table_producto")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestMigrationRunner_FailureRollsBack(t *testing.T) {
	f := setupTestRunner(t)
	ctx := context.Background()

	f.write(t, "0001_broken",
		revision.Steps(
			productoTable(),
			&revision.AddColumn{Table: "producto", Column: revision.Column{Name: "precio", Type: revision.TypeInt}},
		),
		nil)

	assert.False(t, f.runner.Run(ctx, "0001_broken", revision.Upgrade, false))
	assert.False(t, f.db.Migrator().HasTable("producto"))

	applied, err := f.ledger.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrationRunner_Fake(t *testing.T) {
	f := setupTestRunner(t)
	ctx := context.Background()

	f.write(t, "0001_create_table_producto", revision.Steps(productoTable()), nil)

	assert.True(t, f.runner.Run(ctx, "0001_create_table_producto", revision.Upgrade, true))
	assert.False(t, f.db.Migrator().HasTable("producto"))

	applied, err := f.ledger.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_create_table_producto"}, applied)

	// fake runs never read the file, so a missing one is fine
	assert.True(t, f.runner.Run(ctx, "0002_missing", revision.Upgrade, true))
	assert.True(t, f.runner.Run(ctx, "0002_missing", revision.Downgrade, true))
}

func TestMigrationRunner_BlankRevisionRecordsLedger(t *testing.T) {
	f := setupTestRunner(t)
	ctx := context.Background()

	var enabled int
	require.NoError(t, f.db.Raw("PRAGMA foreign_keys").Row().Scan(&enabled))
	require.Equal(t, 1, enabled)

	f.write(t, "0001_init", nil, nil)

	require.True(t, f.runner.Run(ctx, "0001_init", revision.Upgrade, false))
	entries, err := f.ledger.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0001_init", entries[0].Name)
	assert.False(t, entries[0].DateApplied.IsZero())

	require.True(t, f.runner.Run(ctx, "0001_init", revision.Downgrade, false))
	applied, err := f.ledger.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	// the same connection keeps working for the next revision
	f.write(t, "0002_create_table_producto", revision.Steps(productoTable()), nil)
	require.True(t, f.runner.Run(ctx, "0002_create_table_producto", revision.Upgrade, false))
	require.True(t, f.runner.Run(ctx, "0001_init", revision.Upgrade, false))

	applied, err = f.ledger.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init", "0002_create_table_producto"}, applied)

	require.NoError(t, f.db.Raw("PRAGMA foreign_keys").Row().Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestMigrationRunner_Failures(t *testing.T) {
	f := setupTestRunner(t)
	ctx := context.Background()

	f.write(t, "0001_blank", nil, nil)

	tests := []struct {
		name      string
		id        string
		direction revision.Direction
	}{
		{name: "missing file", id: "0009_missing", direction: revision.Upgrade},
		{name: "unknown direction", id: "0001_blank", direction: revision.Direction("sideways")},
		{name: "downgrade of unapplied revision", id: "0001_blank", direction: revision.Downgrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, f.runner.Run(ctx, tt.id, tt.direction, false))
		})
	}

	// upgrading twice trips the ledger's unique name
	assert.True(t, f.runner.Run(ctx, "0001_blank", revision.Upgrade, false))
	assert.False(t, f.runner.Run(ctx, "0001_blank", revision.Upgrade, false))
}

func TestMigrationRunner_RecoversPanic(t *testing.T) {
	f := setupTestRunner(t)
	f.runner.store = nil

	assert.NotPanics(t, func() {
		assert.False(t, f.runner.Run(context.Background(), "0001_any", revision.Upgrade, false))
	})
}
