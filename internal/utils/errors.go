package utils

import (
	"errors"
	"fmt"
	"strings"
)

// Custom error types
var (
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a revision or ledger entry is not found
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous is returned when a revision target matches zero or several revisions
	ErrAmbiguous = errors.New("ambiguous or unknown target")

	// ErrConflict is returned when there's a conflict with existing data
	ErrConflict = errors.New("conflict")

	// ErrIO is returned when the revision directory cannot be read or written
	ErrIO = errors.New("io error")

	// ErrDatabase is returned when there's a database operation error
	ErrDatabase = errors.New("database error")

	// ErrOperation is returned when a schema operation fails while running a revision
	ErrOperation = errors.New("operation error")
)

// ValidationError represents an error that occurs during input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AmbiguousOrNotFoundError is returned when a target does not resolve to exactly
// one revision.
type AmbiguousOrNotFoundError struct {
	Target  string
	Matches []string
}

func (e *AmbiguousOrNotFoundError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("could not find revision: %s", e.Target)
	}
	return fmt.Sprintf("revision target '%s' is ambiguous: %s", e.Target, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousOrNotFoundError) Unwrap() error {
	return ErrAmbiguous
}

// ConflictError represents an error when there's a conflict with existing data
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("%s already exists with %s='%s'", e.Resource, e.Field, e.Value)
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// IOError represents a filesystem failure on the revision directory
type IOError struct {
	Op    string
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("io error during %s of %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("io error during %s of %s", e.Op, e.Path)
}

func (e *IOError) Unwrap() []error {
	return causeChain(ErrIO, e.Cause)
}

// DatabaseError represents an error that occurs during database operations
type DatabaseError struct {
	Operation string
	Cause     error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("database error during %s", e.Operation)
}

func (e *DatabaseError) Unwrap() []error {
	return causeChain(ErrDatabase, e.Cause)
}

// OperationError wraps the failure of a single schema operation inside a revision.
type OperationError struct {
	Revision string
	Index    int
	Kind     string
	Cause    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("revision %s: operation #%d (%s) failed: %v", e.Revision, e.Index+1, e.Kind, e.Cause)
}

func (e *OperationError) Unwrap() []error {
	return causeChain(ErrOperation, e.Cause)
}

func causeChain(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// Error wrapping functions

// WrapValidationError wraps an error as a validation error
func WrapValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WrapNotFoundError wraps an error as a not found error
func WrapNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// WrapConflictError wraps an error as a conflict error
func WrapConflictError(resource, field, value string) error {
	return &ConflictError{
		Resource: resource,
		Field:    field,
		Value:    value,
	}
}

// WrapIOError wraps an error as an io error
func WrapIOError(op, path string, cause error) error {
	return &IOError{
		Op:    op,
		Path:  path,
		Cause: cause,
	}
}

// WrapDatabaseError wraps an error as a database error
func WrapDatabaseError(operation string, cause error) error {
	return &DatabaseError{
		Operation: operation,
		Cause:     cause,
	}
}

// Error checking functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAmbiguousError checks if an error is an unresolved revision target
func IsAmbiguousError(err error) bool {
	return errors.Is(err, ErrAmbiguous)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsIOError checks if an error is an io error
func IsIOError(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsDatabaseError checks if an error is a database error
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsOperationError checks if an error is a failed schema operation
func IsOperationError(err error) bool {
	return errors.Is(err, ErrOperation)
}

// Helper function to create a validation error for required fields
func RequiredFieldError(field string) error {
	return WrapValidationError(field, "field is required")
}

// Helper function to create a validation error for invalid field values
func InvalidFieldError(field, reason string) error {
	return WrapValidationError(field, reason)
}
