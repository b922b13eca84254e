package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// setupLogging installs the default slog logger: text to stdout, and to
// file as well when one is configured. The file is truncated on start.
func setupLogging(file string) (closeFn func(), err error) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	closeFn = func() {}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closeFn = func() { _ = f.Close() }
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	})))
	return closeFn, nil
}
