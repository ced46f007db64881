package models

import (
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized = fmt.Errorf("unauthorized")
)

/*
ValidationError carries field-level messages for a payload that failed
its schema. Fields maps a field name to one or more messages.
*/
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{
		Fields: map[string][]string{},
	}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns nil when no field failed, so callers can return it directly.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}

	return nil
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))

	for k := range e.Fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	parts := make([]string, 0, len(keys))

	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}

	return "invalid payload: " + strings.Join(parts, "; ")
}

// ConfigurationError means the server is missing settings the operator cannot supply.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

/*
UpstreamError is returned when the image provider call fails or answers
with an incomplete shape. StatusCode is 0 when no response was received.
*/
type UpstreamError struct {
	Message    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}

	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}
