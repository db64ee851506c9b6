package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/ksred/tienda-moves/internal/migrator"
	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/schema"
	"github.com/ksred/tienda-moves/internal/utils"
)

// DefaultRevisionName is used when revision is called without a name
const DefaultRevisionName = "auto migration"

var (
	// ErrBatchFailed is returned when a revision of an upgrade or downgrade batch fails
	ErrBatchFailed = errors.New("revision batch failed")
	// ErrNotApplied is returned when a downgrade target has no ledger row
	ErrNotApplied = errors.New("revision not yet applied")
	// ErrNothingApplied is returned when downgrading an empty ledger
	ErrNothingApplied = errors.New("no revisions applied")
)

// Options configures a Manager
type Options struct {
	Directory string
	Table     string
	Fs        afero.Fs
	Registry  *schema.Registry
	// Info describes the connection for Info(); it must not hold secrets
	Info map[string]interface{}
	Now  func() time.Time
}

// RevisionStatus is one line of Status
type RevisionStatus struct {
	ID          string     `json:"id"`
	Applied     bool       `json:"applied"`
	DateApplied *time.Time `json:"date_applied,omitempty"`
}

// Status lists every revision file and any ledger rows without a file
type Status struct {
	Revisions []RevisionStatus `json:"revisions"`
	Orphans   []string         `json:"orphans,omitempty"`
}

// Manager orchestrates revision files, the ledger and the runner
type Manager struct {
	db       *gorm.DB
	store    *revision.Store
	ledger   *Ledger
	migrator *migrator.Migrator
	runner   *MigrationRunner
	registry *schema.Registry
	info     map[string]interface{}
	now      func() time.Time
	logger   zerolog.Logger
}

// NewManager creates the revision directory and the ledger table if needed
func NewManager(ctx context.Context, db *gorm.DB, opts Options, logger zerolog.Logger) (*Manager, error) {
	if db == nil {
		return nil, utils.RequiredFieldError("db")
	}
	if opts.Directory == "" {
		opts.Directory = "migrations"
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Registry == nil {
		opts.Registry = schema.Builtin()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	m, err := migrator.New(db)
	if err != nil {
		return nil, err
	}

	store, err := revision.NewStore(opts.Fs, opts.Directory)
	if err != nil {
		return nil, err
	}

	ledger := NewLedger(db, opts.Table, logger)
	if err := ledger.Ensure(ctx); err != nil {
		return nil, err
	}

	return &Manager{
		db:       db,
		store:    store,
		ledger:   ledger,
		migrator: m,
		runner:   NewMigrationRunner(store, ledger, m, logger),
		registry: opts.Registry,
		info:     opts.Info,
		now:      opts.Now,
		logger:   logger,
	}, nil
}

// Store returns the revision store
func (m *Manager) Store() *revision.Store {
	return m.store
}

// Ledger returns the ledger
func (m *Manager) Ledger() *Ledger {
	return m.ledger
}

// DB returns the database handle
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Pending returns revision ids with no ledger row, ascending
func (m *Manager) Pending(ctx context.Context) ([]string, error) {
	files, err := m.store.List()
	if err != nil {
		return nil, err
	}
	applied, err := m.appliedSet(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(files))
	for _, id := range files {
		if !applied[id] {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

// AppliedReverse returns the applied revision ids, most recent first
func (m *Manager) AppliedReverse(ctx context.Context) ([]string, error) {
	applied, err := m.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(applied)))
	return applied, nil
}

func (m *Manager) appliedSet(ctx context.Context) (map[string]bool, error) {
	applied, err := m.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(applied))
	for _, id := range applied {
		set[id] = true
	}
	return set, nil
}

// Find resolves target to a revision id: an exact id, or the unique id whose
// prefix before an underscore is target. A bare number is zero-padded, so 3
// finds 0003_*.
func (m *Manager) Find(target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", utils.RequiredFieldError("target")
	}

	files, err := m.store.List()
	if err != nil {
		return "", err
	}

	prefix := target
	if isDigits(prefix) && len(prefix) < 4 {
		prefix = strings.Repeat("0", 4-len(prefix)) + prefix
	}

	var matches []string
	for _, id := range files {
		if id == target {
			return id, nil
		}
		if id == prefix || strings.HasPrefix(id, prefix+"_") {
			matches = append(matches, id)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", &utils.AmbiguousOrNotFoundError{Target: target, Matches: matches}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Upgrade runs pending revisions in ascending order. With a target it stops
// after running the target; a target that is already applied is a no-op.
func (m *Manager) Upgrade(ctx context.Context, target string, fake bool) error {
	if target != "" {
		id, err := m.Find(target)
		if err != nil {
			m.logger.Error().Err(err).Msg("Upgrade target not found")
			return err
		}
		applied, err := m.ledger.IsApplied(ctx, id)
		if err != nil {
			return err
		}
		if applied {
			m.logger.Info().Str("revision", id).Msg("already applied")
			return nil
		}
		target = id
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.Info().Msg("all revisions applied")
		return nil
	}

	for _, id := range pending {
		if !m.runner.Run(ctx, id, revision.Upgrade, fake) {
			return fmt.Errorf("upgrade %s: %w", id, ErrBatchFailed)
		}
		if id == target {
			break
		}
	}
	return nil
}

// Downgrade reverts applied revisions, most recent first. Without a target
// only the most recent revision is reverted; with a target every applied
// revision down to and including it is.
func (m *Manager) Downgrade(ctx context.Context, target string, fake bool) error {
	if target != "" {
		id, err := m.Find(target)
		if err != nil {
			m.logger.Error().Err(err).Msg("Downgrade target not found")
			return err
		}
		applied, err := m.ledger.IsApplied(ctx, id)
		if err != nil {
			return err
		}
		if !applied {
			m.logger.Info().Str("revision", id).Msg("not yet applied")
			return fmt.Errorf("%s: %w", id, ErrNotApplied)
		}
		target = id
	}

	applied, err := m.AppliedReverse(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		m.logger.Info().Msg("revisions not yet applied")
		return ErrNothingApplied
	}

	for _, id := range applied {
		if !m.runner.Run(ctx, id, revision.Downgrade, fake) {
			return fmt.Errorf("downgrade %s: %w", id, ErrBatchFailed)
		}
		if target == "" || id == target {
			break
		}
	}
	return nil
}

// Revision writes a new blank revision and returns its id
func (m *Manager) Revision(name string) (string, error) {
	return m.write(name, nil, nil)
}

func (m *Manager) write(name string, upgrade, downgrade []revision.Step) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultRevisionName
	}

	files, err := m.store.List()
	if err != nil {
		return "", err
	}
	id, err := revision.NewID(files, name)
	if err != nil {
		return "", err
	}

	rev := &revision.Revision{
		ID:        id,
		Name:      name,
		CreatedAt: m.now(),
		Upgrade:   upgrade,
		Downgrade: downgrade,
	}
	if err := m.store.Write(rev); err != nil {
		return "", err
	}

	m.logger.Info().Str("revision", id).Msg("created")
	return id, nil
}

// ModelGroup is one registry module and the models it declares
type ModelGroup struct {
	Module string
	Models []string
}

// Models lists the targets Create accepts, in registration order
func (m *Manager) Models() []ModelGroup {
	modules := m.registry.Modules()
	groups := make([]ModelGroup, 0, len(modules))
	for _, module := range modules {
		g := ModelGroup{Module: module}
		for _, e := range m.registry.Entities(module) {
			g.Models = append(g.Models, e.Name)
		}
		groups = append(groups, g)
	}
	return groups
}

// Create writes one create-table revision per entity target resolves to.
// Entities are ordered so referenced tables are created first.
func (m *Manager) Create(target string) ([]string, error) {
	entities, err := m.registry.Resolve(target)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		upgrade, err := m.registry.Upgrade(e)
		if err != nil {
			return ids, err
		}
		id, err := m.write("create table "+e.Name, upgrade, m.registry.Downgrade(e))
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes a revision file and its ledger row, if any
func (m *Manager) Delete(ctx context.Context, target string) error {
	id, err := m.Find(target)
	if err != nil {
		return err
	}

	if err := m.store.Remove(id); err != nil {
		return err
	}
	if err := m.ledger.Unrecord(ctx, id); err != nil && !utils.IsNotFoundError(err) {
		return err
	}

	m.logger.Info().Str("revision", id).Msg("deleted")
	return nil
}

// Info logs the driver, the database and the connection arguments
func (m *Manager) Info() map[string]interface{} {
	info := map[string]interface{}{"driver": m.migrator.Dialect().Name()}
	for k, v := range m.info {
		info[k] = v
	}

	event := m.logger.Info()
	for _, k := range sortedInfoKeys(info) {
		event = event.Interface(k, info[k])
	}
	event.Msg("database")
	return info
}

func sortedInfoKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Status reports every revision file with its ledger state, plus ledger
// rows whose file is missing.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	files, err := m.store.List()
	if err != nil {
		return nil, err
	}
	entries, err := m.ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}

	applied := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		applied[e.Name] = e.DateApplied
	}

	status := &Status{Revisions: make([]RevisionStatus, 0, len(files))}
	known := make(map[string]bool, len(files))
	for _, id := range files {
		known[id] = true
		rs := RevisionStatus{ID: id}
		if date, ok := applied[id]; ok {
			rs.Applied = true
			rs.DateApplied = &date
		}
		status.Revisions = append(status.Revisions, rs)
	}
	for _, e := range entries {
		if !known[e.Name] {
			status.Orphans = append(status.Orphans, e.Name)
		}
	}

	if len(files) == 0 {
		m.logger.Info().Msg("no revisions found")
	}
	for _, orphan := range status.Orphans {
		m.logger.Warn().Str("revision", orphan).Msg("Ledger entry has no revision file")
	}
	return status, nil
}

// Read returns the parsed revision target resolves to
func (m *Manager) Read(target string) (*revision.Revision, error) {
	id, err := m.Find(target)
	if err != nil {
		return nil, err
	}
	return m.store.Read(id)
}
