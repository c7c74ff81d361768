package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/loanledger/internal/storage"
)

// Sentinels wrapped by every error the service returns. Errors are
// *connect.Error values, so callers can match with errors.Is or
// connect.CodeOf interchangeably.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrStorageFailure  = errors.New("storage failure")
)

func invalidArgument(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument,
		fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...)))
}

// toServiceError classifies an error that escaped a transaction.
func toServiceError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, fmt.Errorf("%w: %w", ErrNotFound, err))
	case errors.Is(err, storage.ErrConflict):
		return connect.NewError(connect.CodeAborted, fmt.Errorf("%w: %w", ErrStorageFailure, err))
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("%w: %w", ErrStorageFailure, err))
	}
}

// parseDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, invalidArgument("%s is required", field)
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, invalidArgument("%s %q is not a date", field, value)
	}
	return t, nil
}
