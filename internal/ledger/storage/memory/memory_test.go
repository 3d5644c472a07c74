package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/coffers/internal/platform/errors"

	"github.com/louisbranch/coffers/internal/ledger/domain/event"
	"github.com/louisbranch/coffers/internal/ledger/storage"
)

func depositEvent(id, accountID string, seq uint64, ts time.Time) event.Event {
	return event.Event{
		ID:          id,
		AccountID:   accountID,
		Seq:         seq,
		Timestamp:   ts,
		Type:        event.TypeFundsDeposited,
		PayloadJSON: []byte(`{"amount":10,"currency":"USD"}`),
	}
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	err := store.AppendEvents(ctx, "acc-1", []event.Event{
		depositEvent("evt-1", "acc-1", 1, base),
		depositEvent("evt-2", "acc-1", 2, base.Add(time.Minute)),
	}, 0)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := store.ListEvents(ctx, "acc-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("expected ascending seq, got %d then %d", events[0].Seq, events[1].Seq)
	}

	seq, err := store.LatestSeq(ctx, "acc-1")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if seq != 2 {
		t.Fatalf("expected latest seq 2, got %d", seq)
	}
}

func TestListEventsUnknownAccount(t *testing.T) {
	store := New()

	events, err := store.ListEvents(context.Background(), "nope", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty slice, got %d events", len(events))
	}
}

func TestListEventsAfterSeqAndLimit(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	var batch []event.Event
	for seq := uint64(1); seq <= 5; seq++ {
		batch = append(batch, depositEvent("evt", "acc-1", seq, base))
		batch[len(batch)-1].ID = batch[len(batch)-1].ID + string(rune('0'+seq))
	}
	if err := store.AppendEvents(ctx, "acc-1", batch, 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	events, err := store.ListEvents(ctx, "acc-1", 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 3 || events[1].Seq != 4 {
		t.Fatalf("expected seq 3 and 4, got %d and %d", events[0].Seq, events[1].Seq)
	}
}

func TestAppendStaleVersionLeavesLogUnchanged(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	if err := store.AppendEvents(ctx, "acc-1", []event.Event{depositEvent("evt-1", "acc-1", 1, base)}, 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	err := store.AppendEvents(ctx, "acc-1", []event.Event{depositEvent("evt-2", "acc-1", 1, base)}, 0)
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	events, err := store.ListEvents(ctx, "acc-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("conflicting append must not change the log, got %d events", len(events))
	}
}

func TestAppendInvalidBatchAppendsNothing(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	// Second event breaks the contiguous run, so the whole batch must fail.
	err := store.AppendEvents(ctx, "acc-1", []event.Event{
		depositEvent("evt-1", "acc-1", 1, base),
		depositEvent("evt-2", "acc-1", 3, base),
	}, 0)
	if !errors.Is(err, apperrors.New(apperrors.CodeBatchInvalid, "")) {
		t.Fatalf("expected CodeBatchInvalid, got %v", err)
	}

	events, err := store.ListEvents(ctx, "acc-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected empty log after rejected batch, got %d events", len(events))
	}

	// Wrong-account event inside the batch is rejected the same way.
	err = store.AppendEvents(ctx, "acc-1", []event.Event{
		depositEvent("evt-1", "acc-1", 1, base),
		depositEvent("evt-2", "acc-2", 2, base),
	}, 0)
	if !errors.Is(err, apperrors.New(apperrors.CodeBatchInvalid, "")) {
		t.Fatalf("expected CodeBatchInvalid, got %v", err)
	}
}

func TestConcurrentAppendsSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	const writers = 8
	var wg sync.WaitGroup
	results := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			evt := depositEvent("evt-w"+string(rune('0'+i)), "acc-1", 1, base)
			results[i] = store.AppendEvents(ctx, "acc-1", []event.Event{evt}, 0)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, storage.ErrVersionConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning append, got %d", winners)
	}

	seq, err := store.LatestSeq(ctx, "acc-1")
	if err != nil {
		t.Fatalf("latest seq: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected latest seq 1, got %d", seq)
	}
}

func TestListAllEventsDeterministicOrder(t *testing.T) {
	ctx := context.Background()
	store := New()
	ts := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	// Identical timestamps across accounts: order falls back to account id
	// then seq, so two stores fed the same data list identically.
	if err := store.AppendEvents(ctx, "acc-b", []event.Event{depositEvent("evt-b1", "acc-b", 1, ts)}, 0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendEvents(ctx, "acc-a", []event.Event{
		depositEvent("evt-a1", "acc-a", 1, ts),
		depositEvent("evt-a2", "acc-a", 2, ts),
	}, 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	all, err := store.ListAllEvents(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	want := []string{"evt-a1", "evt-a2", "evt-b1"}
	if len(all) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(all))
	}
	for i, id := range want {
		if all[i].ID != id {
			t.Fatalf("expected %s at position %d, got %s", id, i, all[i].ID)
		}
	}
}

func TestListedPayloadsDoNotAliasJournal(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	original := depositEvent("evt-1", "acc-1", 1, base)
	if err := store.AppendEvents(ctx, "acc-1", []event.Event{original}, 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Mutating a listed event's payload bytes must not reach the journal.
	listed, err := store.ListEvents(ctx, "acc-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := range listed[0].PayloadJSON {
		listed[0].PayloadJSON[i] = 'x'
	}

	all, err := store.ListAllEvents(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	for i := range all[0].PayloadJSON {
		all[0].PayloadJSON[i] = 'y'
	}

	reread, err := store.ListEvents(ctx, "acc-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if string(reread[0].PayloadJSON) != string(original.PayloadJSON) {
		t.Fatalf("journal payload corrupted: %s", reread[0].PayloadJSON)
	}

	// Mutating the appended batch after the fact must not reach it either.
	for i := range original.PayloadJSON {
		original.PayloadJSON[i] = 'z'
	}
	reread, err = store.ListEvents(ctx, "acc-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if string(reread[0].PayloadJSON) != `{"amount":10,"currency":"USD"}` {
		t.Fatalf("journal payload corrupted: %s", reread[0].PayloadJSON)
	}
}

func TestViewStore(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.GetView(ctx, "acc-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	view := storage.ViewRecord{
		AccountID:    "acc-1",
		Version:      4,
		HolderName:   "Ada Lovelace",
		Balance:      60,
		Currency:     "USD",
		Closed:       true,
		LastActivity: time.Date(2026, 1, 5, 9, 3, 0, 0, time.UTC),
	}
	if err := store.PutView(ctx, view); err != nil {
		t.Fatalf("put view: %v", err)
	}

	got, err := store.GetView(ctx, "acc-1")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	if got != view {
		t.Fatalf("expected %+v, got %+v", view, got)
	}

	views, err := store.ListViews(ctx)
	if err != nil {
		t.Fatalf("list views: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
}
