package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aristath/taskflow/internal/core"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store defines the persistence interface for task snapshots and flow history.
type Store interface {
	// Task snapshots
	SaveSnapshot(ctx context.Context, flow string, snap core.Snapshot) error
	GetSnapshot(ctx context.Context, flow, taskID string) (core.Snapshot, error)
	ListSnapshots(ctx context.Context, flow string) ([]core.Snapshot, error)
	Dependents(ctx context.Context, flow, taskID string) ([]string, error)

	// Flow history
	SaveMessage(ctx context.Context, flow string, m core.Message) error
	GetHistory(ctx context.Context, flow, taskID string) ([]core.Message, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing. Every store
// gets its own named database shared by its connections.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:taskflow-%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection for row iteration, one for the dependency lookups inside it.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
