package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "files.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_ReadMissing(t *testing.T) {
	s := newTestSQLiteStore(t)

	_, err := s.Read(context.Background(), "c1", "main.go")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestSQLiteStore_WriteAndRead(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "c1", "main.go", "package main"))

	content, err := s.Read(ctx, "c1", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main", content)
}

func TestSQLiteStore_WriteOverwrites(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "c1", "main.go", "first"))
	require.NoError(t, s.Write(ctx, "c1", "main.go", "second"))

	content, err := s.Read(ctx, "c1", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "second", content)
}

func TestSQLiteStore_KeysAreScopedByContainer(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "c1", "main.go", "one"))
	require.NoError(t, s.Write(ctx, "c2", "main.go", "two"))

	content, err := s.Read(ctx, "c1", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "one", content)

	content, err = s.Read(ctx, "c2", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "two", content)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "files.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "c1", "main.go", "durable"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	content, err := s.Read(ctx, "c1", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "durable", content)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	var s FileStore = NewMemoryStore()
	ctx := context.Background()

	_, err := s.Read(ctx, "c1", "main.go")
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, s.Write(ctx, "c1", "main.go", "content"))

	content, err := s.Read(ctx, "c1", "main.go")
	require.NoError(t, err)
	assert.Equal(t, "content", content)

	assert.NoError(t, s.Close())
}
