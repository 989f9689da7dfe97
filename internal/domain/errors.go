package domain

import "fmt"

// CollaboratorError marks a failure in an external service. Callers
// recover from it (skip the item or fall back) rather than abort a run.
type CollaboratorError struct {
	Service string
	Op      string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// Collab wraps err as a CollaboratorError; nil stays nil.
func Collab(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Service: service, Op: op, Err: err}
}
