// Package store persists transactions into a local SQLite database,
// deduplicating on the (card_id, cardtransactionid) primary key.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	sqlite3 "github.com/mattn/go-sqlite3"

	"hopwatch/internal/domain"
	"hopwatch/internal/logger"
)

// ErrPersistence marks a real persistence failure — disk, corruption, schema
// mismatch. Duplicate keys are not persistence failures.
var ErrPersistence = errors.New("store: persistence failure")

// defaultSchema is the built-in fallback used when no external schema file
// is configured.
const defaultSchema = `
CREATE TABLE transactions (
    card_id TEXT,
    card_name TEXT,
    cardtransactionid TEXT,
    description TEXT,
    location TEXT,
    transactiondatetime TEXT,
    hop_balance_display TEXT,
    value REAL,
    value_display TEXT,
    journey_id TEXT,
    refundrequested INTEGER,
    refundable_value REAL,
    transaction_type_description TEXT,
    transaction_type TEXT,
    PRIMARY KEY (card_id, cardtransactionid)
)`

const insertSQL = `INSERT INTO transactions (
    card_id, card_name, cardtransactionid, description, location,
    transactiondatetime, hop_balance_display, value, value_display,
    journey_id, refundrequested, refundable_value,
    transaction_type_description, transaction_type
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// Store wraps the SQLite database file.
type Store struct {
	db         *sql.DB
	path       string
	schemaFile string
}

// Open opens (creating if needed) the database file. schemaFile may be empty;
// EnsureSchema then uses the built-in definition.
func Open(path, schemaFile string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	return &Store{db: db, path: path, schemaFile: schemaFile}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema idempotently creates the transactions table: a no-op when it
// already exists, otherwise created from the configured schema file or,
// failing that, the built-in definition.
func (s *Store) EnsureSchema(ctx context.Context) error {
	log := logger.FromContext(ctx)

	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'`).Scan(&name)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("EnsureSchema: %w: %v", ErrPersistence, err)
	}

	schema := defaultSchema
	if s.schemaFile != "" {
		raw, readErr := os.ReadFile(s.schemaFile)
		switch {
		case readErr == nil:
			schema = string(raw)
		case os.IsNotExist(readErr):
			log.Debug().Str("schema_file", s.schemaFile).Msg("schema file absent, using built-in schema")
		default:
			return fmt.Errorf("EnsureSchema: reading schema file: %w", readErr)
		}
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("EnsureSchema: %w: %v", ErrPersistence, err)
	}
	log.Info().Str("database", s.path).Msg("database initialized")
	return nil
}

// CountForCard returns the number of stored rows for one card.
func (s *Store) CountForCard(ctx context.Context, cardID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE card_id = ?`, cardID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountForCard: %w: %v", ErrPersistence, err)
	}
	return n, nil
}

// Batch is one card's scoped write transaction. Inserts through a batch
// become visible atomically on Commit; Rollback leaves the table untouched,
// so concurrent readers never see a half-applied batch.
type Batch struct {
	tx *sql.Tx
}

func (s *Store) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("BeginBatch: %w: %v", ErrPersistence, err)
	}
	return &Batch{tx: tx}, nil
}

// InsertIfAbsent attempts the insert and reports whether the row is new.
// A primary-key collision is a benign duplicate: (false, nil). Anything else
// is a persistence failure.
func (b *Batch) InsertIfAbsent(ctx context.Context, t *domain.Transaction) (bool, error) {
	cardName := sql.NullString{String: t.CardName, Valid: t.CardName != ""}
	value := sql.NullFloat64{}
	if t.Value != nil {
		value = sql.NullFloat64{Float64: *t.Value, Valid: true}
	}

	_, err := b.tx.ExecContext(ctx, insertSQL,
		t.CardID, cardName, t.CardTransactionID, t.Description, t.Location,
		t.TransactionDateTime, t.BalanceDisplay, value, t.ValueDisplay,
		t.JourneyID, t.RefundRequested, t.RefundableValue,
		t.TypeDescription, t.TypeCode,
	)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return false, nil
		}
		return false, fmt.Errorf("InsertIfAbsent: %w: %v", ErrPersistence, err)
	}
	return true, nil
}

func (b *Batch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w: %v", ErrPersistence, err)
	}
	return nil
}

func (b *Batch) Rollback() error {
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("Rollback: %w: %v", ErrPersistence, err)
	}
	return nil
}
