package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/coffers/internal/ledger/storage"
)

// PutView upserts a materialized account row.
func (s *Store) PutView(ctx context.Context, view storage.ViewRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	closed := 0
	if view.Closed {
		closed = 1
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO account_views (account_id, version, holder_name, balance, currency, closed, last_activity)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(account_id) DO UPDATE SET
    version = excluded.version,
    holder_name = excluded.holder_name,
    balance = excluded.balance,
    currency = excluded.currency,
    closed = excluded.closed,
    last_activity = excluded.last_activity`,
		view.AccountID,
		int64(view.Version),
		view.HolderName,
		view.Balance,
		view.Currency,
		closed,
		toMillis(view.LastActivity),
	); err != nil {
		return fmt.Errorf("put view: %w", err)
	}
	return nil
}

// GetView retrieves a materialized account row.
func (s *Store) GetView(ctx context.Context, accountID string) (storage.ViewRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ViewRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ViewRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT account_id, version, holder_name, balance, currency, closed, last_activity
FROM account_views
WHERE account_id = ?`, accountID)

	view, err := scanView(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ViewRecord{}, storage.ErrNotFound
		}
		return storage.ViewRecord{}, fmt.Errorf("get view: %w", err)
	}
	return view, nil
}

// ListViews returns all materialized account rows ordered by account id.
func (s *Store) ListViews(ctx context.Context) ([]storage.ViewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT account_id, version, holder_name, balance, currency, closed, last_activity
FROM account_views
ORDER BY account_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	var views []storage.ViewRecord
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read views: %w", err)
	}
	return views, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(row rowScanner) (storage.ViewRecord, error) {
	var view storage.ViewRecord
	var version, lastActivity int64
	var closed int
	if err := row.Scan(&view.AccountID, &version, &view.HolderName, &view.Balance, &view.Currency, &closed, &lastActivity); err != nil {
		return storage.ViewRecord{}, err
	}
	view.Version = uint64(version)
	view.Closed = closed != 0
	view.LastActivity = fromMillis(lastActivity)
	return view, nil
}
