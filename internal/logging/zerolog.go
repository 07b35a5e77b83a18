package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog returns the structured logger used by storage, database and
// metrics code. When console is true a human readable copy goes to stdout.
func NewZerolog(w io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	if w != nil {
		writers = append(writers, w)
	}
	if console {
		writers = append(writers, zerolog.ConsoleWriter{Out: osStdout, TimeFormat: time.RFC3339})
	}
	if len(writers) == 0 {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Logger()
}
