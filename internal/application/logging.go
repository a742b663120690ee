package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/workstation-scheduler/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContextOr(ctx, base)

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// logResult logs the outcome of an operation. Internal consistency faults are
// logged at error level, expected rejections at warn level.
func logResult(ctx context.Context, logger *slog.Logger, err error, msg string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, msg+" succeeded", attrs...)
		return
	}
	kind := ErrorKind(err)
	args := append([]any{"error", err, "error_kind", kind}, attrs...)
	switch kind {
	case "internal_consistency", "storage", "unexpected":
		logger.ErrorContext(ctx, msg+" failed", args...)
	default:
		logger.WarnContext(ctx, msg+" rejected", args...)
	}
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInternalConsistency):
		return "internal_consistency"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	}

	var (
		vErr        *ValidationError
		conflictErr *ConflictError
		stateErr    *InvalidStateError
		storageErr  *StorageError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &conflictErr):
		return "conflict"
	case errors.As(err, &stateErr):
		return "invalid_state"
	case errors.As(err, &storageErr):
		return "storage"
	}
	return "unexpected"
}
