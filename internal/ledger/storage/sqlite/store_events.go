package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/coffers/internal/ledger/domain/event"
	"github.com/louisbranch/coffers/internal/ledger/storage"
)

// AppendEvents atomically appends a batch for one account with an
// expected-version check. The version check and the inserts share one
// transaction, so concurrent appends for the same account serialize on the
// database and at most one writer wins a given expected version.
func (s *Store) AppendEvents(ctx context.Context, accountID string, events []event.Event, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := storage.ValidateBatch(accountID, events, expectedVersion); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current uint64
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM ledger_events WHERE account_id = ?", accountID)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("load current version: %w", err)
	}
	if current != expectedVersion {
		return storage.ErrVersionConflict
	}

	for _, evt := range events {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO ledger_events (account_id, seq, event_id, event_type, timestamp, request_id, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			evt.AccountID,
			int64(evt.Seq),
			evt.ID,
			string(evt.Type),
			toMillis(evt.Timestamp),
			evt.RequestID,
			evt.PayloadJSON,
		); err != nil {
			// The (account_id, seq) primary key catches writers that
			// raced past the version check on another connection.
			if isConstraintError(err) {
				return storage.ErrVersionConflict
			}
			return fmt.Errorf("append event %s: %w", evt.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// ListEvents returns an account's events after afterSeq ordered by seq
// ascending. A limit <= 0 returns the full remainder.
func (s *Store) ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `
SELECT account_id, seq, event_id, event_type, timestamp, request_id, payload_json
FROM ledger_events
WHERE account_id = ? AND seq > ?
ORDER BY seq ASC`
	args := []any{accountID, int64(afterSeq)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListAllEvents returns the full journal ordered by timestamp, account id,
// seq. The tie-break keeps full-log replay deterministic when timestamps
// collide across accounts.
func (s *Store) ListAllEvents(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT account_id, seq, event_id, event_type, timestamp, request_id, payload_json
FROM ledger_events
ORDER BY timestamp ASC, account_id ASC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LatestSeq returns the current version for an account (0 if none).
func (s *Store) LatestSeq(ctx context.Context, accountID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var seq uint64
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM ledger_events WHERE account_id = ?", accountID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return seq, nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var evt event.Event
		var seq, ts int64
		var eventType string
		if err := rows.Scan(&evt.AccountID, &seq, &evt.ID, &eventType, &ts, &evt.RequestID, &evt.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Type = event.Type(eventType)
		evt.Timestamp = fromMillis(ts)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}
