package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gusfragger/webot/internal/datetime"
	"github.com/gusfragger/webot/internal/logging"
	"github.com/gusfragger/webot/internal/notification"
	"github.com/gusfragger/webot/internal/recurrence"
	"github.com/gusfragger/webot/internal/timezone"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// serviceLogger prefers the request scoped logger carried by ctx.
func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(base)
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSchedulingConflict):
		return "scheduling_conflict"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, timezone.ErrInvalidTimezone):
		return "invalid_timezone"
	case errors.Is(err, datetime.ErrDateParsingFailed), errors.Is(err, datetime.ErrInvalidDateTime):
		return "invalid_datetime"
	case errors.Is(err, notification.ErrInvalidOffsetToken):
		return "invalid_offset"
	case errors.Is(err, recurrence.ErrUnbounded):
		return "unbounded_recurrence"
	case errors.Is(err, notification.ErrDeliveryFailed):
		return "delivery_failed"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	return "unexpected"
}

func logFailure(ctx context.Context, logger *slog.Logger, msg string, err error) {
	level := slog.LevelWarn
	if ErrorKind(err) == "unexpected" {
		level = slog.LevelError
	}
	logger.Log(ctx, level, msg, slog.String("error_kind", ErrorKind(err)), slog.Any("error", err))
}
