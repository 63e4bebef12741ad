package engine

import (
	"errors"
	"fmt"
)

// The four error classes every engine operation reports through.
// NotFoundOrForbidden deliberately collapses "does not exist" and "not
// yours" so callers cannot probe for other tenants' tables.
var (
	ErrNotFoundOrForbidden = errors.New("table or project not found")
	ErrValidation          = errors.New("validation failed")
	ErrSandboxRejected     = errors.New("query rejected")
	ErrEngine              = errors.New("engine execution failed")
)

func notFoundErr() error {
	return ErrNotFoundOrForbidden
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

func rejectedf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrSandboxRejected)
}

func enginef(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", err.Error(), ErrEngine)
}
