// Package domain defines core types, interfaces, and errors for the semantic query compiler.
package domain

import (
	"errors"
	"fmt"
)

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotConfiguredError indicates an optional collaborator (generator, warehouse) was not wired.
type NotConfiguredError struct {
	Component string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("%s is not configured", e.Component)
}

// UnknownMetricError indicates a requested metric has no semantic layer entry.
type UnknownMetricError struct {
	Name string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("metric definition for %q not found in semantic layer", e.Name)
}

// UnknownDimensionError indicates a requested dimension (or its grain-stripped base) has no entry.
type UnknownDimensionError struct {
	Name string
}

func (e *UnknownDimensionError) Error() string {
	return fmt.Sprintf("dimension definition for %q not found in semantic layer", e.Name)
}

// UnknownFilterFieldError indicates a filter field matches neither a dimension nor a metric.
type UnknownFilterFieldError struct {
	Field string
}

func (e *UnknownFilterFieldError) Error() string {
	return fmt.Sprintf("filter field %q not found in dimensions or metrics", e.Field)
}

// MissingJoinError indicates no declared join edge connects a table to the anchor table.
type MissingJoinError struct {
	Anchor string
	Table  string
}

func (e *MissingJoinError) Error() string {
	return fmt.Sprintf("no join definition found between %s and %s", e.Anchor, e.Table)
}

// NoTablesError indicates the query requested neither metrics nor dimensions.
type NoTablesError struct{}

func (e *NoTablesError) Error() string {
	return "no tables identified from metrics or dimensions; unable to build query"
}

// DuplicateDefinitionError indicates a semantic layer declares the same metric or dimension name twice.
type DuplicateDefinitionError struct {
	Kind string // "metric" or "dimension"
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("duplicate %s definition %q in semantic layer", e.Kind, e.Name)
}

// InvalidFilterValueError indicates a filter value that cannot be rendered as a SQL literal.
type InvalidFilterValueError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterValueError) Error() string {
	if e.Field == "" {
		return "invalid filter value: " + e.Reason
	}
	return fmt.Sprintf("invalid value for filter %q: %s", e.Field, e.Reason)
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotConfigured creates a NotConfiguredError for the named component.
func ErrNotConfigured(component string) *NotConfiguredError {
	return &NotConfiguredError{Component: component}
}

// IsCompileError reports whether err (or anything it wraps) is a deterministic
// compiler error. Retrying a compile error can never change its outcome.
func IsCompileError(err error) bool {
	var (
		unknownMetric    *UnknownMetricError
		unknownDimension *UnknownDimensionError
		unknownField     *UnknownFilterFieldError
		missingJoin      *MissingJoinError
		noTables         *NoTablesError
		duplicate        *DuplicateDefinitionError
		badValue         *InvalidFilterValueError
		validation       *ValidationError
	)
	return errors.As(err, &unknownMetric) ||
		errors.As(err, &unknownDimension) ||
		errors.As(err, &unknownField) ||
		errors.As(err, &missingJoin) ||
		errors.As(err, &noTables) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &badValue) ||
		errors.As(err, &validation)
}

// ErrorKind returns a stable machine-readable name for a domain error, or
// "internal" for anything else.
func ErrorKind(err error) string {
	var (
		unknownMetric    *UnknownMetricError
		unknownDimension *UnknownDimensionError
		unknownField     *UnknownFilterFieldError
		missingJoin      *MissingJoinError
		noTables         *NoTablesError
		duplicate        *DuplicateDefinitionError
		badValue         *InvalidFilterValueError
		validation       *ValidationError
		notConfigured    *NotConfiguredError
	)
	switch {
	case errors.As(err, &unknownMetric):
		return "unknown_metric"
	case errors.As(err, &unknownDimension):
		return "unknown_dimension"
	case errors.As(err, &unknownField):
		return "unknown_filter_field"
	case errors.As(err, &missingJoin):
		return "missing_join"
	case errors.As(err, &noTables):
		return "no_tables"
	case errors.As(err, &duplicate):
		return "duplicate_definition"
	case errors.As(err, &badValue):
		return "invalid_filter_value"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &notConfigured):
		return "not_configured"
	default:
		return "internal"
	}
}
