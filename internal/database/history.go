// internal/database/history.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Session statuses kept in lobby_sessions.
const (
	SessionOpen      = "open"
	SessionStarted   = "started"
	SessionClosed    = "closed"
	SessionAbandoned = "abandoned"
)

// HistorySchema creates the tables written by the historian.
const HistorySchema = `
	CREATE TABLE IF NOT EXISTS lobby_sessions (
		id            UUID PRIMARY KEY,
		lobby         TEXT NOT NULL,
		status        TEXT NOT NULL,
		opened_at     TIMESTAMPTZ NOT NULL,
		last_event_at TIMESTAMPTZ NOT NULL,
		closed_at     TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS lobby_sessions_open ON lobby_sessions (lobby) WHERE status = 'open';

	CREATE TABLE IF NOT EXISTS lobby_events (
		id      UUID PRIMARY KEY,
		lobby   TEXT NOT NULL,
		kind    TEXT NOT NULL,
		at      TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS lobby_events_lobby_at ON lobby_events (lobby, at);
`

// Execer runs statements outside a transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Beginner is the subset of *pgxpool.Pool used to open transactions.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// EventRecord is one relayed lobby event as stored in lobby_events.
type EventRecord struct {
	ID      uuid.UUID       `json:"id"`
	Kind    string          `json:"kind"`
	Lobby   string          `json:"-"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// EnsureHistorySchema creates the history tables if they are missing.
func EnsureHistorySchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, HistorySchema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// SaveEvents stores a batch of events and advances the lobby sessions they
// belong to, all in one transaction. Events already stored are skipped.
func SaveEvents(ctx context.Context, db Beginner, records []EventRecord) error {
	return BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := saveEventTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("failed to save event %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

func saveEventTx(ctx context.Context, tx pgx.Tx, rec EventRecord) error {
	tag, err := tx.Exec(ctx, `
		INSERT INTO lobby_events (id, lobby, kind, at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.Lobby, rec.Kind, rec.At, []byte(rec.Payload))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	switch rec.Kind {
	case "new-lobby":
		if _, err := tx.Exec(ctx, `
			UPDATE lobby_sessions
			SET status = $2, closed_at = $3
			WHERE lobby = $1 AND status = 'open'
		`, rec.Lobby, SessionClosed, rec.At); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO lobby_sessions (id, lobby, status, opened_at, last_event_at)
			VALUES ($1, $2, $3, $4, $4)
		`, rec.ID, rec.Lobby, SessionOpen, rec.At)
	case "game-started":
		err = closeSessionTx(ctx, tx, rec.Lobby, SessionStarted, rec.At)
	case "left-lobby":
		err = closeSessionTx(ctx, tx, rec.Lobby, SessionClosed, rec.At)
	default:
		_, err = tx.Exec(ctx, `
			UPDATE lobby_sessions
			SET last_event_at = GREATEST(last_event_at, $2)
			WHERE lobby = $1 AND status = 'open'
		`, rec.Lobby, rec.At)
	}
	return err
}

func closeSessionTx(ctx context.Context, tx pgx.Tx, lobby, status string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE lobby_sessions
		SET status = $2, closed_at = $3, last_event_at = $3
		WHERE lobby = $1 AND status = 'open'
	`, lobby, status, at)
	return err
}

// AbandonIdleSessions marks open sessions with no event since before cutoff
// as abandoned and returns their lobby names.
func AbandonIdleSessions(ctx context.Context, db Beginner, cutoff time.Time) ([]string, error) {
	var lobbies []string
	err := BeginTxFunc(ctx, db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE lobby_sessions
			SET status = $2, closed_at = NOW()
			WHERE status = 'open' AND last_event_at < $1
			RETURNING lobby
		`, cutoff, SessionAbandoned)
		if err != nil {
			return err
		}
		lobbies, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	return lobbies, err
}

// BeginTxFunc starts a transaction, calls f with it, and commits or rolls
// back depending on f's result.
func BeginTxFunc(ctx context.Context, db Beginner, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}
