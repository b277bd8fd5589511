package apperr

import "fmt"

// FieldError points at a single offending input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports malformed or missing input, per field where known.
type ValidationError struct {
	Msg    string
	Fields []FieldError
}

func NewValidationError(msg string, flds ...FieldError) *ValidationError {
	return &ValidationError{Msg: msg, Fields: flds}
}

func (e *ValidationError) Error() string { return e.Msg }

// ReferenceError reports a foreign entity that could not be resolved.
type ReferenceError struct {
	Entity string
	Key    string
	Row    int // 1-based data row for imports, 0 when not row-scoped
}

func NewReferenceError(entity, key string, row int) *ReferenceError {
	return &ReferenceError{Entity: entity, Key: key, Row: row}
}

func (e *ReferenceError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s %q does not exist", e.Row, e.Entity, e.Key)
	}
	return fmt.Sprintf("%s %q does not exist", e.Entity, e.Key)
}

// ConflictError reports a uniqueness violation in the store.
type ConflictError struct {
	Key string
	Msg string
}

func NewConflictError(key, msg string) *ConflictError {
	return &ConflictError{Key: key, Msg: msg}
}

func (e *ConflictError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s (conflicting key %q)", e.Msg, e.Key)
	}
	return e.Msg
}

// LockedRecordError rejects a mutation attempted past the edit window.
type LockedRecordError struct {
	ID string
}

func NewLockedRecordError(id string) *LockedRecordError {
	return &LockedRecordError{ID: id}
}

func (e *LockedRecordError) Error() string {
	return fmt.Sprintf("record %s is locked: edit window has expired", e.ID)
}
