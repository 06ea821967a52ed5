// Logic for connecting to the local sync database.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// A Connector opens the durable store backing the sync queue.
type Connector interface {
	Connect() (*sql.DB, error)
}

// DefaultConnection opens the SQLite file named by the SYNC_DATABASE_PATH
// environment variable.
var DefaultConnection = &EnvConnector{}

// EnvConnector reads the database path from SYNC_DATABASE_PATH.
type EnvConnector struct{}

func (c *EnvConnector) Connect() (*sql.DB, error) {
	path := os.Getenv("SYNC_DATABASE_PATH")
	if path == "" {
		return nil, errors.New("db: No value provided for SYNC_DATABASE_PATH, cannot connect")
	}
	return (&FileConnector{Path: path}).Connect()
}

// FileConnector opens a SQLite database at the given path, creating parent
// directories as needed. The queue has a single background writer plus
// foreground enqueues, so the pool is capped at one connection and WAL mode
// keeps readers from blocking it.
type FileConnector struct {
	Path string
}

func (c *FileConnector) Connect() (*sql.DB, error) {
	if c.Path == "" {
		return nil, errors.New("db: empty database path")
	}
	if dir := filepath.Dir(c.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("db: could not create data directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", c.Path)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("db: %s: %w", pragma, err)
		}
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, errors.New("db: could not establish a database connection: " + err.Error())
	}
	return conn, nil
}
