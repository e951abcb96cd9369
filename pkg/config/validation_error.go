package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError collects every problem found in a configuration
type ValidationError struct {
	Errors []error
}

// NewValidationError creates a new ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{
		Errors: make([]error, 0),
	}
}

// Add adds an error to the validation error list
func (v *ValidationError) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// HasErrors returns true if there are any validation errors
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	switch len(v.Errors) {
	case 0:
		return ""
	case 1:
		return v.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "found %d validation errors:", len(v.Errors))
	for i, err := range v.Errors {
		fmt.Fprintf(&sb, "\n  %d. %v", i+1, err)
	}
	return sb.String()
}

// Is reports whether any collected error matches target
func (v *ValidationError) Is(target error) bool {
	for _, err := range v.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Unwrap returns the collected errors
func (v *ValidationError) Unwrap() []error {
	return v.Errors
}

// ErrorOrNil returns the error if there are any validation errors, otherwise nil
func (v *ValidationError) ErrorOrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}
