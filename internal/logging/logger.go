// Package logging builds the process-wide slog logger: tinted console output
// for dev builds, JSON for released builds.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type Options struct {
	Level   slog.Level
	AppEnv  string
	Version string
	AppName string
}

func New(opts Options) *slog.Logger {
	if opts.Version == "dev" {
		h := tint.NewHandler(os.Stdout, &tint.Options{
			Level:      opts.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", opts.AppName)
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: opts.Level,
	})
	return slog.New(h).With(
		"app", opts.AppName,
		"version", opts.Version,
		"env", opts.AppEnv,
	)
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
