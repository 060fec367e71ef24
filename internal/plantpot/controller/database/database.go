// Package database records the watering history and the engine log in SQLite
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/saturnblock/pythonplantpot/internal/log"

	// Import pure-Go SQLite driver for database/sql (no CGO required)
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored times sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the history database
type DB struct {
	db      *sql.DB
	mu      sync.RWMutex
	enabled bool
	path    string
}

// New creates a new database instance
func New(dbPath string, enabled bool) *DB {
	return &DB{
		path:    dbPath,
		enabled: enabled,
	}
}

// Init opens the database and creates the tables
func (d *DB) Init() error {
	if !d.enabled {
		log.Info("History database disabled")
		return nil
	}

	log.Info("Opening history database: %s", d.path)
	if err := os.MkdirAll(filepath.Dir(d.path), 0750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL lets the CLI read while the daemon writes
	db, err := sql.Open("sqlite", d.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	d.mu.Lock()
	d.db = db
	d.mu.Unlock()

	if err := d.createTables(); err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *DB) createTables() error {
	db := d.GetDB()
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	createLogsTable := `
		CREATE TABLE IF NOT EXISTS engine_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			level TEXT NOT NULL,
			message TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON engine_logs(timestamp);
		CREATE INDEX IF NOT EXISTS idx_logs_level ON engine_logs(level);
	`

	createEventsTable := `
		CREATE TABLE IF NOT EXISTS watering_events (
			id TEXT PRIMARY KEY,
			occurred_at TEXT NOT NULL,
			kind TEXT NOT NULL,
			amount_ml INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			reason TEXT,
			remaining_cycles INTEGER NOT NULL DEFAULT 0,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_occurred ON watering_events(occurred_at);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON watering_events(kind);
	`

	if _, err := db.Exec(createLogsTable); err != nil {
		return fmt.Errorf("failed to create engine_logs table: %w", err)
	}
	if _, err := db.Exec(createEventsTable); err != nil {
		return fmt.Errorf("failed to create watering_events table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// GetDB returns the underlying connection, nil before Init or when disabled
func (d *DB) GetDB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// IsEnabled returns whether the database is enabled
func (d *DB) IsEnabled() bool {
	return d.enabled
}
