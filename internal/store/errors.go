package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("lead not found")
	ErrAlreadyExists   = errors.New("lead already exists")
	ErrInvalidLead     = errors.New("invalid lead")
	ErrMalformedRecord = errors.New("malformed record")
)

// MalformedRecordError describes a persisted row that could not be decoded.
// Line is 1-based and 0 when unknown.
type MalformedRecordError struct {
	Line   int
	Column string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	loc := ""
	if e.Line > 0 {
		loc = fmt.Sprintf(" line %d", e.Line)
	}
	if e.Column != "" {
		return fmt.Sprintf("malformed record%s: column %s: %s", loc, e.Column, e.Reason)
	}
	return fmt.Sprintf("malformed record%s: %s", loc, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }
