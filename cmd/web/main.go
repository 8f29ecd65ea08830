package main

import (
	"log/slog"
	"os"

	"stockdash/internal/app"
	"stockdash/internal/infrastructure"
)

func main() {
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	runErr := application.Run()
	infrastructure.CloseLogFile()

	if runErr != nil {
		slog.Error("Application error", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
}
