// Package memory provides an in-process storage backend for tests and
// single-node deployments without a database file.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/louisbranch/coffers/internal/ledger/domain/event"
	"github.com/louisbranch/coffers/internal/ledger/storage"
)

// Store keeps the journal and views in memory behind a single lock.
//
// The lock is held only for the duration of the version-check-and-append,
// never across a caller's history-load-and-decide step; stale decisions are
// detected by the expected-version check, not prevented by locking.
type Store struct {
	mu     sync.RWMutex
	events map[string][]event.Event
	views  map[string]storage.ViewRecord
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		events: make(map[string][]event.Event),
		views:  make(map[string]storage.ViewRecord),
	}
}

// AppendEvents implements storage.EventStore.
func (s *Store) AppendEvents(ctx context.Context, accountID string, events []event.Event, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateBatch(accountID, events, expectedVersion); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := uint64(0)
	if existing := s.events[accountID]; len(existing) > 0 {
		current = existing[len(existing)-1].Seq
	}
	if current != expectedVersion {
		return storage.ErrVersionConflict
	}

	// Copy the batch, payload bytes included, so later caller mutations
	// cannot reach the journal.
	for _, evt := range events {
		s.events[accountID] = append(s.events[accountID], cloneEvent(evt))
	}
	return nil
}

// cloneEvent copies an event with its own payload backing array. Events
// cross the store boundary in both directions as value copies, but the
// payload slice would otherwise still alias the journal's bytes.
func cloneEvent(evt event.Event) event.Event {
	if evt.PayloadJSON != nil {
		evt.PayloadJSON = append([]byte(nil), evt.PayloadJSON...)
	}
	return evt
}

// ListEvents implements storage.EventStore.
func (s *Store) ListEvents(ctx context.Context, accountID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for _, evt := range s.events[accountID] {
		if evt.Seq <= afterSeq {
			continue
		}
		result = append(result, cloneEvent(evt))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// ListAllEvents implements storage.EventStore. Events are ordered by
// timestamp, then account id, then seq, giving full-log replay a total,
// deterministic order even when timestamps collide across accounts.
func (s *Store) ListAllEvents(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var result []event.Event
	for _, events := range s.events {
		for _, evt := range events {
			result = append(result, cloneEvent(evt))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		return a.Seq < b.Seq
	})
	return result, nil
}

// LatestSeq implements storage.EventStore.
func (s *Store) LatestSeq(ctx context.Context, accountID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[accountID]
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Seq, nil
}

// PutView implements storage.ViewStore.
func (s *Store) PutView(ctx context.Context, view storage.ViewRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[view.AccountID] = view
	return nil
}

// GetView implements storage.ViewStore.
func (s *Store) GetView(ctx context.Context, accountID string) (storage.ViewRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ViewRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok := s.views[accountID]
	if !ok {
		return storage.ViewRecord{}, storage.ErrNotFound
	}
	return view, nil
}

// ListViews implements storage.ViewStore.
func (s *Store) ListViews(ctx context.Context) ([]storage.ViewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]storage.ViewRecord, 0, len(s.views))
	for _, view := range s.views {
		views = append(views, view)
	}
	return views, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return nil
}
