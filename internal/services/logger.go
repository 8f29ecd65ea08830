package services

import (
	"context"
	"log/slog"
)

// logServiceError logs a failed service action with standard attributes.
// The component attribute comes from the service logger.
func logServiceError(ctx context.Context, logger *slog.Logger, action, message string, attrs ...slog.Attr) {
	allAttrs := append([]slog.Attr{slog.String("action", action)}, attrs...)
	logger.LogAttrs(ctx, slog.LevelError, message, allAttrs...)
}
