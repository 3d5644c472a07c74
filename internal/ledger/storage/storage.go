package storage

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/coffers/internal/platform/errors"

	"github.com/louisbranch/coffers/internal/ledger/domain/event"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrVersionConflict indicates an append presented a stale expected version:
// another writer appended to the account between the caller's history load
// and its append. The caller must reload history and re-decide, since the
// decision may no longer be valid.
var ErrVersionConflict = apperrors.New(apperrors.CodeVersionConflict, "expected version is stale")

// EventStore owns the append-only event journal that drives command
// rehydration and projection replay; it is the source of truth for state
// reconstruction. It has no business knowledge.
type EventStore interface {
	// AppendEvents atomically appends a batch for one account.
	//
	// The append succeeds only when expectedVersion equals the account's
	// current version (the seq of its latest event, 0 if none); otherwise
	// it fails with ErrVersionConflict and the journal is unchanged. A
	// batch whose events do not all target the account, or whose seq
	// values do not form an unbroken ascending run starting at
	// expectedVersion+1, fails with a CodeBatchInvalid error and nothing
	// is appended. There is no partial append.
	AppendEvents(ctx context.Context, accountID string, events []event.Event, expectedVersion uint64) error
	// ListEvents returns events for an account with seq greater than
	// afterSeq, ordered by seq ascending. A limit <= 0 means no limit.
	// An unknown account yields an empty slice, not an error.
	ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error)
	// ListAllEvents returns the full journal ordered by timestamp
	// ascending, with ties broken by account id and then seq so the order
	// is total and deterministic. Per-account ordering authority remains
	// with seq; the timestamp sort is advisory for full-log replay.
	ListAllEvents(ctx context.Context) ([]event.Event, error)
	// LatestSeq returns the current version for an account (0 if none).
	LatestSeq(ctx context.Context, accountID string) (uint64, error)
}

// ViewRecord captures the materialized account row read by queries.
type ViewRecord struct {
	AccountID    string
	Version      uint64
	HolderName   string
	Balance      int64
	Currency     string
	Closed       bool
	LastActivity time.Time
}

// ViewStore owns durable account read models. Views are derived caches
// written only by the projection path, never by deciders or the journal.
type ViewStore interface {
	PutView(ctx context.Context, view ViewRecord) error
	GetView(ctx context.Context, accountID string) (ViewRecord, error)
	ListViews(ctx context.Context) ([]ViewRecord, error)
}

// Store is the composite interface for all persistence concerns.
type Store interface {
	EventStore
	ViewStore
	Close() error
}

// ValidateBatch checks the shape of an append batch against the journal
// contract. Backends call it before touching storage so a malformed batch
// is rejected whole.
func ValidateBatch(accountID string, events []event.Event, expectedVersion uint64) error {
	if accountID == "" {
		return batchInvalid("account id is required")
	}
	if len(events) == 0 {
		return batchInvalid("event batch is empty")
	}
	for i, evt := range events {
		if evt.ID == "" {
			return batchInvalid(fmt.Sprintf("event at index %d has no id", i))
		}
		if !evt.Type.IsValid() {
			return batchInvalid(fmt.Sprintf("event %s has unknown type %q", evt.ID, evt.Type))
		}
		if evt.AccountID != accountID {
			return batchInvalid(fmt.Sprintf("event %s targets account %q, batch is for %q", evt.ID, evt.AccountID, accountID))
		}
		want := expectedVersion + uint64(i) + 1
		if evt.Seq != want {
			return batchInvalid(fmt.Sprintf("event %s has seq %d, expected %d", evt.ID, evt.Seq, want))
		}
	}
	return nil
}

func batchInvalid(message string) error {
	return apperrors.New(apperrors.CodeBatchInvalid, message)
}
