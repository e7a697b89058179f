// Package storage persists message processing state: one record per
// masterdata/event id with its pipeline status, plus a per-destination
// outcome log. Supports SQLite for development and PostgreSQL for
// deployment, selected by DATABASE_TYPE.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"epcis-hub/internal/common/errors"
)

// MessageStatus is the pipeline status of a persisted message record.
type MessageStatus string

const (
	// StatusPending - message received, not yet confirmed on a ledger
	StatusPending MessageStatus = "pending"
	// StatusOnLedger - all destination adapters confirmed the payload
	StatusOnLedger MessageStatus = "on_ledger"
	// StatusFailed - processing or dispatch failed
	StatusFailed MessageStatus = "failed"
)

// MessageRecord is the persisted state of one inbound payload.
type MessageRecord struct {
	MessageID      string        `db:"message_id"`
	OrganizationID string        `db:"organization_id"`
	ClientID       string        `db:"client_id"`
	Category       string        `db:"category"`
	Status         MessageStatus `db:"status"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// DestinationOutcome is one dispatch attempt to a destination adapter.
type DestinationOutcome struct {
	ID           int64     `db:"id"`
	MessageID    string    `db:"message_id"`
	Destination  string    `db:"destination"`
	Success      bool      `db:"success"`
	Detail       string    `db:"detail"`
	DispatchedAt time.Time `db:"dispatched_at"`
}

// DB wraps the underlying connection with hub-specific queries.
type DB struct {
	*sqlx.DB
}

// Init opens the database for the given type ("sqlite" or "postgres"/
// "postgresql"), verifies connectivity, and applies migrations.
func Init(databaseType, dsn string) (*DB, error) {
	driver := "sqlite3"
	if databaseType == "postgres" || databaseType == "postgresql" {
		driver = "postgres"
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapper := &DB{db}
	if err := wrapper.migrate(driver); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return wrapper, nil
}

func (db *DB) migrate(driver string) error {
	outcomeID := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		outcomeID = "BIGSERIAL PRIMARY KEY"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS destination_outcomes (
			id %s,
			message_id TEXT NOT NULL,
			destination TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			dispatched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, outcomeID),
		`CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_message_id ON destination_outcomes(message_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	return nil
}

// UpsertPending records a message as received with pending status. A
// redelivered message id resets to pending rather than erroring.
func (db *DB) UpsertPending(ctx context.Context, messageID, organizationID, clientID, category string) error {
	query := db.Rebind(`INSERT INTO messages (message_id, organization_id, client_id, category, status)
		VALUES (?, ?, ?, ?, 'pending')
		ON CONFLICT (message_id) DO UPDATE SET status = 'pending', updated_at = CURRENT_TIMESTAMP`)

	if _, err := db.ExecContext(ctx, query, messageID, organizationID, clientID, category); err != nil {
		return errors.PersistenceError("failed to record pending message", err).
			WithContext("message_id", messageID)
	}
	return nil
}

// SetStatus updates the status of a persisted message record.
func (db *DB) SetStatus(ctx context.Context, messageID string, status MessageStatus) error {
	query := db.Rebind(`UPDATE messages SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE message_id = ?`)

	if _, err := db.ExecContext(ctx, query, string(status), messageID); err != nil {
		return errors.PersistenceError("failed to update message status", err).
			WithContext("message_id", messageID)
	}
	return nil
}

// GetMessage returns the persisted record for a message id.
func (db *DB) GetMessage(ctx context.Context, messageID string) (*MessageRecord, error) {
	query := db.Rebind(`SELECT message_id, organization_id, client_id, category, status, created_at, updated_at
		FROM messages WHERE message_id = ?`)

	var record MessageRecord
	if err := db.GetContext(ctx, &record, query, messageID); err != nil {
		return nil, errors.PersistenceError("failed to load message record", err).
			WithContext("message_id", messageID)
	}
	return &record, nil
}

// RecordOutcome appends one dispatch attempt to the per-destination log.
func (db *DB) RecordOutcome(ctx context.Context, messageID, destination string, success bool, detail string) error {
	query := db.Rebind(`INSERT INTO destination_outcomes (message_id, destination, success, detail)
		VALUES (?, ?, ?, ?)`)

	if _, err := db.ExecContext(ctx, query, messageID, destination, success, detail); err != nil {
		return errors.PersistenceError("failed to record destination outcome", err).
			WithContext("message_id", messageID).
			WithContext("destination", destination)
	}
	return nil
}

// ListOutcomes returns the dispatch attempts logged for a message id.
func (db *DB) ListOutcomes(ctx context.Context, messageID string) ([]DestinationOutcome, error) {
	query := db.Rebind(`SELECT id, message_id, destination, success, detail, dispatched_at
		FROM destination_outcomes WHERE message_id = ? ORDER BY id`)

	var outcomes []DestinationOutcome
	if err := db.SelectContext(ctx, &outcomes, query, messageID); err != nil {
		return nil, errors.PersistenceError("failed to list destination outcomes", err).
			WithContext("message_id", messageID)
	}
	return outcomes, nil
}
