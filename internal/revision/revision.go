// Package revision reads and writes revision files: YAML documents holding an
// ordered list of schema operations for each direction.
package revision

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ksred/tienda-moves/internal/utils"
)

// Direction selects which operation list of a revision runs.
type Direction string

const (
	Upgrade   Direction = "upgrade"
	Downgrade Direction = "downgrade"
)

func (d Direction) Valid() bool {
	return d == Upgrade || d == Downgrade
}

// Revision is one numbered schema change.
type Revision struct {
	ID        string    `yaml:"-" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	Upgrade   []Step    `yaml:"upgrade" json:"upgrade"`
	Downgrade []Step    `yaml:"downgrade" json:"downgrade"`
}

// Steps returns the operation list for the direction.
func (r *Revision) Steps(d Direction) []Step {
	if d == Downgrade {
		return r.Downgrade
	}
	return r.Upgrade
}

// Validate checks every step of both directions.
func (r *Revision) Validate() error {
	for _, d := range []Direction{Upgrade, Downgrade} {
		for i, step := range r.Steps(d) {
			field := fmt.Sprintf("%s[%d]", d, i)
			if step.Operation == nil {
				return utils.InvalidFieldError(field, "empty operation")
			}
			if err := step.Validate(); err != nil {
				var ve *utils.ValidationError
				if errors.As(err, &ve) {
					return utils.InvalidFieldError(field+"."+ve.Field, ve.Message)
				}
				return err
			}
		}
	}
	return nil
}

// Step wraps an Operation so lists of mixed kinds round-trip through YAML and
// JSON with an "op" tag.
type Step struct {
	Operation
}

// MarshalYAML emits the operation's fields preceded by its op tag.
func (s Step) MarshalYAML() (interface{}, error) {
	if s.Operation == nil {
		return nil, fmt.Errorf("cannot encode empty step")
	}
	var node yaml.Node
	if err := node.Encode(s.Operation); err != nil {
		return nil, err
	}
	tag := []*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "op"},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(s.Kind())},
	}
	node.Content = append(tag, node.Content...)
	return &node, nil
}

// UnmarshalYAML picks the concrete operation from the op tag.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: operation must be a mapping", value.Line)
	}

	var kind Kind
	fields := *value
	fields.Content = nil
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "op" {
			kind = Kind(value.Content[i+1].Value)
			continue
		}
		fields.Content = append(fields.Content, value.Content[i], value.Content[i+1])
	}
	if kind == "" {
		return fmt.Errorf("line %d: operation has no op tag", value.Line)
	}

	op, err := newOperation(kind)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	if err := fields.Decode(op); err != nil {
		return err
	}
	s.Operation = op
	return nil
}

// MarshalJSON flattens the operation with its op tag for the status API.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.Operation == nil {
		return nil, fmt.Errorf("cannot encode empty step")
	}
	raw, err := json.Marshal(s.Operation)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["op"], _ = json.Marshal(s.Kind())
	return json.Marshal(fields)
}

// Steps wraps operations for a revision body.
func Steps(ops ...Operation) []Step {
	steps := make([]Step, 0, len(ops))
	for _, op := range ops {
		steps = append(steps, Step{Operation: op})
	}
	return steps
}
