package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		doc     string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "sitaclogs",
			doc:     "sitac",
			want:    filepath.Join("sitaclogs", "sitac.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./sitaclogs",
			doc:     "sitac",
			want:    filepath.Join(".", "sitaclogs", "sitac.20260212_213836.log"),
		},
		{
			name:    "document name with spaces",
			logsDir: filepath.Join("/var", "log", "sitac"),
			doc:     " Op Alpha ",
			want:    filepath.Join("/var", "log", "sitac", "Op_Alpha.20260212_213836.log"),
		},
		{
			name:    "empty name",
			logsDir: "logs",
			doc:     "",
			want:    filepath.Join("logs", "sitac.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, tt.doc, sessionStart))
		})
	}
}
