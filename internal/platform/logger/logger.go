package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger in production and a text logger otherwise.
func New(production bool) *slog.Logger {
	return NewWithWriter(os.Stdout, production)
}

func NewWithWriter(w io.Writer, production bool) *slog.Logger {
	if production {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
