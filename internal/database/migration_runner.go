package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/migrator"
	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

// MigrationRunner executes a single revision in one direction
type MigrationRunner struct {
	store    *revision.Store
	ledger   *Ledger
	migrator *migrator.Migrator
	logger   zerolog.Logger
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(store *revision.Store, ledger *Ledger, m *migrator.Migrator, logger zerolog.Logger) *MigrationRunner {
	return &MigrationRunner{
		store:    store,
		ledger:   ledger,
		migrator: m,
		logger:   logger,
	}
}

// Run applies or reverts revision id and updates the ledger in the same
// transaction. With fake set the operations are skipped and only the ledger
// changes. Failures are logged and reported as false; any schema change the
// revision made is rolled back with the transaction.
func (r *MigrationRunner) Run(ctx context.Context, id string, direction revision.Direction, fake bool) (ok bool) {
	log := r.logger.With().
		Str("revision", id).
		Str("direction", string(direction)).
		Bool("fake", fake).
		Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("Revision panicked")
			ok = false
		}
	}()

	if err := r.run(ctx, id, direction, fake, log); err != nil {
		log.Error().Err(err).Msg("Revision failed")
		return false
	}
	return true
}

func (r *MigrationRunner) run(ctx context.Context, id string, direction revision.Direction, fake bool, log zerolog.Logger) error {
	if !direction.Valid() {
		return utils.InvalidFieldError("direction", fmt.Sprintf("unknown direction %q", direction))
	}

	var steps []revision.Step
	if !fake {
		rev, err := r.store.Read(id)
		if err != nil {
			return err
		}
		steps = rev.Steps(direction)
	}

	log.Info().Int("operations", len(steps)).Msg("Running revision")

	err := r.migrator.Transaction(ctx, func(tm *migrator.Migrator, tx *gorm.DB) error {
		for i, step := range steps {
			if err := tm.Apply(ctx, step.Operation); err != nil {
				return &utils.OperationError{Revision: id, Index: i, Kind: string(step.Kind()), Cause: err}
			}
		}

		ledger := r.ledger.WithTx(tx)
		if direction == revision.Upgrade {
			return ledger.Record(ctx, id)
		}
		return ledger.Unrecord(ctx, id)
	})
	if err != nil {
		return err
	}

	log.Info().Msg("Revision completed successfully")
	return nil
}
