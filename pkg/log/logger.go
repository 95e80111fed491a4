package log

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger at info level, tagged with the service
// identity
func New(service, env, version string) *slog.Logger {
	return NewWithLevel(service, env, version, slog.LevelInfo)
}

// NewWithLevel returns a JSON slog.Logger at the given level. Every record
// carries the service, env, and version attributes
func NewWithLevel(service, env, version string, lvl slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}
