package core

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// SetupLogging installs the process-wide structured logger on stderr.
//
// This is the operational back-channel: spawn pids, wait results and error
// detail, gated by verbosity so the chain's diagnostic line protocol stays
// clean by default. Color is disabled when stderr is not a terminal, which
// is also what chain children see when their output is captured.
func SetupLogging(verbosity int) {
	level := slog.LevelWarn
	switch {
	case verbosity == 1:
		level = slog.LevelInfo
	case verbosity >= 2:
		level = slog.LevelDebug
	}

	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	})

	slog.SetDefault(slog.New(handler))
}
