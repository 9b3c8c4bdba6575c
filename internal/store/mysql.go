package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore keeps each resource as a row in a single documents table.  It
// implements the same whole-document contract as FileStore and relies on
// the same external locking discipline; the database is used as a blob
// store, not as a transaction engine.
type MySQLStore struct {
	db *sql.DB
}

// OpenMySQL connects to MySQL, verifies the connection and ensures the
// documents table exists.
func OpenMySQL(user, pass, host, port, name string) (*MySQLStore, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	const schema = `CREATE TABLE IF NOT EXISTS documents (
		name       VARCHAR(64)  NOT NULL PRIMARY KEY,
		body       MEDIUMTEXT   NOT NULL,
		updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

// Read returns the stored document, or absent when no row exists or the
// stored body is not parseable JSON.
func (s *MySQLStore) Read(name string) (json.RawMessage, bool, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	if !json.Valid([]byte(body)) {
		return nil, false, nil
	}
	return json.RawMessage(body), true, nil
}

// Write upserts the document row.  A single UPDATE is atomic at the row
// level, so readers never observe a torn body.
func (s *MySQLStore) Write(name string, value json.RawMessage) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (name, body) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE body = VALUES(body)`,
		name, string(value),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }
