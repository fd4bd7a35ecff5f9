package log

import (
	"log/slog"
	"os"
	"strings"
)

// Log is the logger shared by every package of the application.
var Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level()}))

// level reads the log level from BONDMON_LOG_LEVEL. Unknown values fall back to info.
func level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("BONDMON_LOG_LEVEL"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
