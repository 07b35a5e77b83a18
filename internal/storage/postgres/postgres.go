// Package postgres stores documents in PostgreSQL through the shared GORM backend.
package postgres

import (
	"errors"
	"fmt"

	"github.com/OCAP2/sitac/internal/database"
	gormstorage "github.com/OCAP2/sitac/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// ErrNoDSN is returned when no connection string is configured.
var ErrNoDSN = errors.New("postgres: empty DSN")

// Backend is a GORM backend connected to PostgreSQL.
type Backend struct {
	*gormstorage.Backend
}

// New connects and pings the server. Init migrates the schema.
func New(dsn string, log zerolog.Logger) (*Backend, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	db, err := database.OpenPostgres(dsn, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &Backend{Backend: gormstorage.New(db, log)}, nil
}
