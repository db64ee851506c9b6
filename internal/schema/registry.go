// Package schema holds explicit descriptions of the tables the create
// command can generate revisions for. Entities are grouped in modules and
// declared with a typed builder.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ksred/tienda-moves/internal/revision"
	"github.com/ksred/tienda-moves/internal/utils"
)

// Entity is one table of a module
type Entity struct {
	Module      string
	Name        string
	columns     []revision.Column
	foreignKeys map[int]string
	indexes     []revision.Index
	constraints []string
}

// Qualified returns module.name
func (e *Entity) Qualified() string {
	return e.Module + "." + e.Name
}

// PrimaryKey returns the primary key column
func (e *Entity) PrimaryKey() revision.Column {
	for _, c := range e.columns {
		if c.IsPrimaryKey() {
			return c
		}
	}
	return revision.Column{}
}

// Registry maps module and entity names to entity descriptions
type Registry struct {
	modules  map[string][]*Entity
	entities map[string]*Entity
	order    []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		modules:  make(map[string][]*Entity),
		entities: make(map[string]*Entity),
	}
}

// Define registers entity name in module. The builder declares its columns;
// a table without a primary key gets an auto-incrementing id column first.
func (r *Registry) Define(module, name string, build func(t *Table)) error {
	module = strings.ToLower(strings.TrimSpace(module))
	name = strings.ToLower(strings.TrimSpace(name))
	if module == "" {
		return utils.RequiredFieldError("module")
	}
	if name == "" {
		return utils.RequiredFieldError("name")
	}

	e := &Entity{Module: module, Name: name, foreignKeys: make(map[int]string)}
	if _, exists := r.entities[e.Qualified()]; exists {
		return utils.WrapConflictError("entity", "name", e.Qualified())
	}

	t := &Table{entity: e}
	build(t)
	if t.err != nil {
		return fmt.Errorf("entity %s: %w", e.Qualified(), t.err)
	}

	hasPK := false
	for _, c := range e.columns {
		if c.IsPrimaryKey() {
			hasPK = true
		}
	}
	if !hasPK {
		e.columns = append([]revision.Column{{Name: "id", Type: revision.TypePrimaryKey}}, e.columns...)
		shifted := make(map[int]string, len(e.foreignKeys))
		for i, target := range e.foreignKeys {
			shifted[i+1] = target
		}
		e.foreignKeys = shifted
	}

	if _, ok := r.modules[module]; !ok {
		r.order = append(r.order, module)
	}
	r.modules[module] = append(r.modules[module], e)
	r.entities[e.Qualified()] = e
	return nil
}

// Modules returns the module names in registration order
func (r *Registry) Modules() []string {
	return append([]string(nil), r.order...)
}

// Entities returns the entities of module in registration order
func (r *Registry) Entities(module string) []*Entity {
	return append([]*Entity(nil), r.modules[strings.ToLower(module)]...)
}

// Lookup finds one entity by "module.name" or by a bare name that is
// unique across modules.
func (r *Registry) Lookup(target string) (*Entity, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if strings.Contains(target, ".") {
		if e, ok := r.entities[target]; ok {
			return e, nil
		}
		return nil, utils.WrapNotFoundError("model", target)
	}

	var matches []string
	for _, module := range r.order {
		for _, e := range r.modules[module] {
			if e.Name == target {
				matches = append(matches, e.Qualified())
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, utils.WrapNotFoundError("model", target)
	case 1:
		return r.entities[matches[0]], nil
	default:
		return nil, &utils.AmbiguousOrNotFoundError{Target: target, Matches: matches}
	}
}

// Resolve expands target into the entities to create. A module name yields
// all of its entities with referenced tables ahead of the tables that
// reference them; an entity name yields that entity.
func (r *Registry) Resolve(target string) ([]*Entity, error) {
	key := strings.ToLower(strings.TrimSpace(target))
	if key == "" {
		return nil, utils.RequiredFieldError("model")
	}
	if entities, ok := r.modules[key]; ok {
		return r.Sort(entities)
	}
	e, err := r.Lookup(key)
	if err != nil {
		return nil, err
	}
	return []*Entity{e}, nil
}

// Sort orders entities so every foreign key target inside the set comes
// before the entity referencing it. Ties keep the input order.
func (r *Registry) Sort(entities []*Entity) ([]*Entity, error) {
	inSet := make(map[string]bool, len(entities))
	for _, e := range entities {
		inSet[e.Qualified()] = true
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(entities))
	sorted := make([]*Entity, 0, len(entities))

	var visit func(e *Entity, path []string) error
	visit = func(e *Entity, path []string) error {
		switch state[e.Qualified()] {
		case done:
			return nil
		case visiting:
			cycle := append(append([]string(nil), path...), e.Qualified())
			return utils.InvalidFieldError("references", "foreign key cycle: "+strings.Join(cycle, " -> "))
		}
		state[e.Qualified()] = visiting
		for _, idx := range sortedIndexes(e.foreignKeys) {
			dep, err := r.target(e, e.foreignKeys[idx])
			if err != nil {
				return err
			}
			if dep == e || !inSet[dep.Qualified()] {
				continue
			}
			next := append(append(make([]string, 0, len(path)+1), path...), e.Qualified())
			if err := visit(dep, next); err != nil {
				return err
			}
		}
		state[e.Qualified()] = done
		sorted = append(sorted, e)
		return nil
	}

	for _, e := range entities {
		if err := visit(e, nil); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// target resolves a foreign key target relative to the entity's module
func (r *Registry) target(e *Entity, name string) (*Entity, error) {
	if !strings.Contains(name, ".") {
		if t, ok := r.entities[e.Module+"."+name]; ok {
			return t, nil
		}
	}
	t, err := r.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("foreign key of %s: %w", e.Qualified(), err)
	}
	return t, nil
}

// Columns returns the entity's columns with foreign keys resolved: each
// takes the type of the target's primary key (int for an auto-incrementing
// key) and references it.
func (r *Registry) Columns(e *Entity) ([]revision.Column, error) {
	columns := make([]revision.Column, len(e.columns))
	copy(columns, e.columns)

	for idx, name := range e.foreignKeys {
		t, err := r.target(e, name)
		if err != nil {
			return nil, err
		}
		pk := t.PrimaryKey()
		kind := pk.Type.Canonical()
		if kind == revision.TypePrimaryKey {
			kind = revision.TypeInt
		}

		c := &columns[idx]
		c.Type = kind
		ref := *c.References
		ref.Table = t.Name
		ref.Column = pk.Name
		c.References = &ref
	}
	return columns, nil
}

// CreateTable builds the create_table operation for e
func (r *Registry) CreateTable(e *Entity) (*revision.CreateTable, error) {
	columns, err := r.Columns(e)
	if err != nil {
		return nil, err
	}
	op := &revision.CreateTable{
		Table:       e.Name,
		Columns:     columns,
		Indexes:     append([]revision.Index(nil), e.indexes...),
		Constraints: append([]string(nil), e.constraints...),
	}
	if err := op.Validate(); err != nil {
		return nil, fmt.Errorf("entity %s: %w", e.Qualified(), err)
	}
	return op, nil
}

// Upgrade returns the steps creating e's table
func (r *Registry) Upgrade(e *Entity) ([]revision.Step, error) {
	op, err := r.CreateTable(e)
	if err != nil {
		return nil, err
	}
	return revision.Steps(op), nil
}

// Downgrade returns the steps dropping e's table
func (r *Registry) Downgrade(e *Entity) []revision.Step {
	return revision.Steps(&revision.DropTable{Table: e.Name})
}

func sortedIndexes(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
