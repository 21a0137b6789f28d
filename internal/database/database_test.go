package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skytether/libration/internal/config"
	"github.com/skytether/libration/internal/model"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host: "db", Port: "5433", Username: "u", Password: "p", Database: "libration",
	})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=libration sslmode=disable", dsn)

	dsn = PostgresDSN(config.DBConfig{SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}

func TestGetSqliteDB_FileAndDump(t *testing.T) {
	dir := t.TempDir()
	db, err := GetSqliteDB(filepath.Join(dir, "live.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	s := model.Session{ID: uuid.New(), BodyA: "Earth", BodyB: "Moon", StartTime: time.Now().UTC()}
	require.NoError(t, db.Create(&s).Error)

	dump := filepath.Join(dir, "dumps", "session.db")
	require.NoError(t, DumpSqlite(db, dump))
	// a second dump replaces the first
	require.NoError(t, DumpSqlite(db, dump))

	restored, err := GetSqliteDB(dump)
	require.NoError(t, err)
	var got model.Session
	require.NoError(t, restored.First(&got, "id = ?", s.ID).Error)
	assert.Equal(t, "Moon", got.BodyB)
}

func TestDumpSqlite_NoPath(t *testing.T) {
	db, err := GetSqliteDB(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.Error(t, DumpSqlite(db, ""))
}

func TestDumpPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.db", "a.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0755))

	paths, err := DumpPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = DumpPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
