package testutils

import (
	"io"
	"log/slog"
)

// Ptr returns a pointer to a copy of v. Handy for building go-github structs.
func Ptr[T any](v T) *T {
	return &v
}

// SLogWithoutTime returns a text logger that omits the time attribute, so its output can be compared in tests.
func SLogWithoutTime(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
