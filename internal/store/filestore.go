// Package store provides the sandbox file store: the document source that
// seeds a collaboration session with its initial content and receives the
// authoritative content back when the session ends. The SQLite
// implementation persists across restarts; the memory implementation backs
// tests and storage-less deployments.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var ErrFileNotFound = errors.New("file not found")

// FileStore reads and writes document content keyed by container and path.
type FileStore interface {
	Read(ctx context.Context, containerID, path string) (string, error)
	Write(ctx context.Context, containerID, path, content string) error
	Close() error
}

// SQLiteStore is a FileStore backed by a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS files (
		container_id TEXT NOT NULL,
		path TEXT NOT NULL,
		content TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (container_id, path)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Read(ctx context.Context, containerID, path string) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM files WHERE container_id = ? AND path = ?`,
		containerID, path).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrFileNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return content, nil
}

func (s *SQLiteStore) Write(ctx context.Context, containerID, path, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (container_id, path, content, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (container_id, path)
		 DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		containerID, path, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is an in-memory FileStore.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]string)}
}

func memKey(containerID, path string) string {
	return containerID + "\x00" + path
}

func (s *MemoryStore) Read(_ context.Context, containerID, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	content, ok := s.files[memKey(containerID, path)]
	if !ok {
		return "", ErrFileNotFound
	}
	return content, nil
}

func (s *MemoryStore) Write(_ context.Context, containerID, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[memKey(containerID, path)] = content
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
