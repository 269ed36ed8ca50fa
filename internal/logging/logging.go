package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// New returns a minimal structured logger with secret redaction.
func New() *slog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel returns a logger at the given level. The handler is chosen
// by LOG_FORMAT: "json", "pretty" (tint console colors), or text.
func NewWithLevel(level string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "pretty":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:       lvl,
			ReplaceAttr: redactSecrets,
		})
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	if isSecretKey(a.Key) {
		a.Value = slog.StringValue("[redacted]")
	}
	return a
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "token") || strings.Contains(k, "secret") || strings.Contains(k, "key") || strings.Contains(k, "pass")
}
