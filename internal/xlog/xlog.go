// Package xlog holds the logger plumbing shared by the hardware models.
package xlog

import (
	"io"

	"golang.org/x/exp/slog"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))

// Or returns l, or a logger that drops everything when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discard
	}
	return l
}
