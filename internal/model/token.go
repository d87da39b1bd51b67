package model

import "fmt"

// Token is a single element of a Step's command: either a Literal
// string or a reference to a variable bound by an earlier step.
type Token interface {
	isToken()
	fmt.Stringer
}

// Literal is a Token whose value passes through to the resolved
// command unchanged.
type Literal string

func (Literal) isToken() {}

func (l Literal) String() string { return string(l) }

// VariableRef is a Token that resolves, at step-run time, to the
// current value of a variable bound by an earlier step.
type VariableRef string

func (VariableRef) isToken() {}

func (v VariableRef) String() string { return fmt.Sprintf("{variable: %s}", string(v)) }

// UnmarshalToken accepts either a bare scalar string (a Literal) or a
// mapping `{variable: name}` (a VariableRef).
func UnmarshalToken(unmarshal func(any) error) (Token, error) {
	var literal string
	if err := unmarshal(&literal); err == nil {
		return Literal(literal), nil
	}

	var ref struct {
		Variable string `yaml:"variable"`
	}
	if err := unmarshal(&ref); err != nil {
		return nil, fmt.Errorf("token must be a string or {variable: name}: %w", err)
	}
	if ref.Variable == "" {
		return nil, fmt.Errorf("variable token must name a variable")
	}
	return VariableRef(ref.Variable), nil
}
