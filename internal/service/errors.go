package service

import (
	"Parley/internal/repo"
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers. Validation and authorization
// failures are rejected before any write; transient store errors are
// retried inside the repo layer and only surface once retries exhaust.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapStoreErr translates repo-level sentinels into the service taxonomy.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repo.ErrInvalidID):
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	default:
		return err
	}
}
