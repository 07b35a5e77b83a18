// Package logging sets up the slog handler chain (console or file, Graylog,
// OpenTelemetry) and the zerolog adapters used by the storage layer.
package logging

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FileName makes a document name safe to use in a file name. Spaces become
// underscores and an empty name becomes "sitac".
func FileName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if name == "" {
		return "sitac"
	}
	return name
}

// LogFilePath returns <logsDir>/<name>.<YYYYmmdd_HHMMSS>.log.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", FileName(name), sessionStart.Format("20060102_150405")))
}
