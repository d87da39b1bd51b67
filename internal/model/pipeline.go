// Package model holds the data shapes shared by the store, the engine,
// and the report writer: Pipeline, Step, Token, and the records an
// engine run produces.
package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/localci/rlci/pkg/cierrors"
)

// Pipeline is an ordered, named list of steps. It is created once (by
// an external compiler this module never implements) and never
// mutated in place after being stored.
type Pipeline struct {
	Name  string `validate:"required"`
	Steps []Step `validate:"dive"`
}

// Step is one shell-style command plus an optional captured-variable
// name. Every VariableRef token in Command must be bound by an earlier
// step in the same pipeline; the engine enforces that dynamically at
// resolve time because it depends on declaration order across the
// whole pipeline, not on a single step in isolation.
type Step struct {
	Command  []Token `validate:"required,min=1"`
	Variable string  `validate:"omitempty,excludesall=0x20"`
}

// rawStep mirrors Step's YAML shape but leaves each command token as a
// yaml.Node so UnmarshalYAML can dispatch on its shape.
type rawStep struct {
	Command  []yaml.Node `yaml:"command"`
	Variable string      `yaml:"variable"`
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	var raw rawStep
	if err := value.Decode(&raw); err != nil {
		return err
	}

	tokens := make([]Token, 0, len(raw.Command))
	for i := range raw.Command {
		node := raw.Command[i]
		token, err := UnmarshalToken(node.Decode)
		if err != nil {
			return fmt.Errorf("command[%d]: %w", i, err)
		}
		tokens = append(tokens, token)
	}

	s.Command = tokens
	s.Variable = raw.Variable
	return nil
}

func (s Step) MarshalYAML() (any, error) {
	command := make([]any, len(s.Command))
	for i, tok := range s.Command {
		switch t := tok.(type) {
		case Literal:
			command[i] = string(t)
		case VariableRef:
			command[i] = map[string]string{"variable": string(t)}
		default:
			return nil, fmt.Errorf("unknown token type %T", tok)
		}
	}
	out := map[string]any{"command": command}
	if s.Variable != "" {
		out["variable"] = s.Variable
	}
	return out, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct-tag rules and, on top of that, the
// pipeline-wide static check that every VariableRef names a variable
// bound by some earlier step, so a forward or self reference is caught
// before a run ever starts.
func (p Pipeline) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("pipeline %q: %w", p.Name, err)
	}

	bound := map[string]bool{}
	for i, step := range p.Steps {
		for _, tok := range step.Command {
			if ref, ok := tok.(VariableRef); ok && !bound[string(ref)] {
				return cierrors.NewValidationError(
					fmt.Sprintf("steps[%d]", i),
					fmt.Sprintf("pipeline %q references unbound variable %q", p.Name, string(ref)),
				)
			}
		}
		if step.Variable != "" {
			bound[step.Variable] = true
		}
	}
	return nil
}
