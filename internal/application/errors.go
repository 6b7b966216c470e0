package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gusfragger/webot/internal/persistence"
)

var (
	// ErrUnauthorized is returned when the acting user may not touch the resource.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrSchedulingConflict is matched by *ConflictError.
	ErrSchedulingConflict = errors.New("application: scheduling conflict")
	// ErrInvalidTransition is returned for meeting status changes the
	// lifecycle does not allow, including ones lost to a concurrent writer.
	ErrInvalidTransition = errors.New("application: invalid status transition")
)

// ValidationError captures field level problems the caller can correct.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error lists the offending fields in a stable order.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + ": " + v.FieldErrors[field]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add keeps the first message recorded for a field.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

// ConflictError reports the busy intervals a requested interval overlaps.
type ConflictError struct {
	OwnerID   string
	Conflicts []Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("interval overlaps %d busy interval(s) of %s", len(e.Conflicts), e.OwnerID)
}

// Is makes errors.Is(err, ErrSchedulingConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrSchedulingConflict
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrStaleWrite):
		return fmt.Errorf("%w: changed concurrently", ErrInvalidTransition)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: referenced record missing", ErrNotFound)
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
