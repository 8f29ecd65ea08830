package testutil

import (
	"log/slog"
	"testing"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		if handler.Count() != 2 {
			t.Errorf("Expected 2 records, got %d", handler.Count())
		}
		if !handler.ContainsMessage("test message") {
			t.Error("Expected to find 'test message'")
		}
		if !handler.ContainsAttr("key", "value") {
			t.Error("Expected to find attribute key=value")
		}
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")

		if got := len(handler.GetRecordsByLevel(slog.LevelWarn)); got != 1 {
			t.Errorf("Expected 1 warn record, got %d", got)
		}
		AssertLogContains(t, handler, slog.LevelDebug, "debug")
		AssertNoErrors(t, handler)
	})

	t.Run("derived loggers share records and keep attrs", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "loader")).Info("loaded")

		if !handler.ContainsAttr("component", "loader") {
			t.Error("Expected component attribute from With")
		}
		if handler.Count() != 1 {
			t.Errorf("Expected 1 record, got %d", handler.Count())
		}
	})
}
