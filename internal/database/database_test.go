package database

import (
	"path/filepath"
	"testing"

	"github.com/OCAP2/sitac/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_MemoryIsPrivate(t *testing.T) {
	a, err := OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)
	b, err := OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, Migrate(a, zerolog.Nop()))
	require.NoError(t, a.Create(&model.Document{Name: "only-in-a"}).Error)

	assert.True(t, a.Migrator().HasTable(&model.Document{}))
	assert.False(t, b.Migrator().HasTable(&model.Document{}), "in-memory databases must not be shared")
}

func TestDumpToDisk(t *testing.T) {
	db, err := OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, Migrate(db, zerolog.Nop()))
	require.NoError(t, db.Create(&model.Document{Name: "Op Alpha"}).Error)

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, DumpToDisk(db, path))
	// a second dump replaces the first
	require.NoError(t, DumpToDisk(db, path))

	disk, err := OpenSQLite(path, zerolog.Nop())
	require.NoError(t, err)
	var doc model.Document
	require.NoError(t, disk.Where("name = ?", "Op Alpha").First(&doc).Error)
	assert.Equal(t, "Op Alpha", doc.Name)
}

func TestDumpToDisk_BadPath(t *testing.T) {
	db, err := OpenSQLite("", zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, DumpToDisk(db, ""))
	assert.Error(t, DumpToDisk(db, "it's.db"))
}
