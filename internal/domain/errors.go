package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoParse        = errors.New("domain: content does not match the variable tree")
	ErrUndefinedValue = errors.New("domain: variable has neither a type nor a value")
	ErrInvalidPath    = errors.New("domain: invalid path or memory")
	ErrGeneration     = errors.New("domain: cannot generate a value")
	// ErrDependencyDeadlock reports callbacks still pending after the tree was
	// exhausted. It matches ErrNoParse under errors.Is.
	ErrDependencyDeadlock = fmt.Errorf("%w: unresolved relation dependencies", ErrNoParse)
)

// VariableError ties a failure to the operation and variable that raised it.
type VariableError struct {
	Op       string
	Variable string
	Err      error
}

func (e *VariableError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Variable, e.Err)
}

func (e *VariableError) Unwrap() error { return e.Err }

func opError(op string, v Variable, err error) error {
	name := ""
	if v != nil {
		name = v.Name()
	}
	return &VariableError{Op: op, Variable: name, Err: err}
}
