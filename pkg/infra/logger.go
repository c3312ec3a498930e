package infra

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger builds the process-wide slog logger from LOG_LEVEL / LOG_FORMAT.
// Output is mirrored to etl.log so runs fired by cron keep a local trace even
// when the supervisor discards stdout.
func SetupLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if logFile, err := os.OpenFile("etl.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		out = io.MultiWriter(os.Stdout, logFile)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.ToUpper(format) == "JSON" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
