// Package replay provides paged event history loading with gap detection.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/coffers/internal/ledger/domain/event"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrAccountIDRequired indicates a missing account id.
	ErrAccountIDRequired = errors.New("account id is required")
)

// EventLister lists events for replay.
type EventLister interface {
	ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error)
}

// Options configures history loading.
type Options struct {
	AfterSeq uint64
	UntilSeq uint64
	PageSize int
}

// History loads an account's event history in pages and verifies the
// sequence is contiguous before handing it to a fold. An account with no
// events yields an empty slice, not an error.
func History(ctx context.Context, store EventLister, accountID string) ([]event.Event, error) {
	return HistoryWith(ctx, store, accountID, Options{})
}

// HistoryWith loads history with explicit bounds.
func HistoryWith(ctx context.Context, store EventLister, accountID string, options Options) ([]event.Event, error) {
	if store == nil {
		return nil, ErrEventStoreRequired
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}

	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var history []event.Event
	lastSeq := options.AfterSeq
	for {
		events, err := store.ListEvents(ctx, accountID, lastSeq, pageSize)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return history, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return history, nil
			}
			if evt.Seq != lastSeq+1 {
				return nil, fmt.Errorf("event sequence gap for %s: expected %d got %d", accountID, lastSeq+1, evt.Seq)
			}
			history = append(history, evt)
			lastSeq = evt.Seq
		}
	}
}
