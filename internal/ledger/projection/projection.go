// Package projection maintains queryable account views folded from the
// event journal, independently of the write-path decider.
package projection

import (
	"sync"
	"time"

	"github.com/louisbranch/coffers/internal/ledger/domain/account"
	"github.com/louisbranch/coffers/internal/ledger/domain/event"
)

// View is the materialized read model for one account.
//
// It embeds the same folded state the decider reconstructs and adds
// query-oriented fields. Views are derived caches: the journal remains the
// sole source of truth and any view can be rebuilt from it.
type View struct {
	account.State
	// LastActivity is the timestamp of the most recent event for the account.
	LastActivity time.Time
}

// Projector folds events into per-account views.
//
// The view map is owned, encapsulated state: all access goes through the
// projector's own lock, never shared globals. Events must be delivered
// exactly once and in ascending sequence order per account; that is the
// caller's contract, since re-applying an event would double its effect.
type Projector struct {
	mu    sync.RWMutex
	views map[string]View
}

// NewProjector returns an empty projector.
func NewProjector() *Projector {
	return &Projector{views: make(map[string]View)}
}

// ProcessEvent folds one event into the account's view, lazily creating the
// view on first sight of the account.
func (p *Projector) ProcessEvent(evt event.Event) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return foldView(p.views, evt)
}

// foldView applies one event to the view map it belongs to. Callers own the
// map's synchronization.
func foldView(views map[string]View, evt event.Event) (View, error) {
	view, ok := views[evt.AccountID]
	if !ok {
		view = View{State: account.NewState(evt.AccountID), LastActivity: evt.Timestamp}
	}

	state, err := account.Apply(view.State, evt)
	if err != nil {
		return View{}, err
	}
	view.State = state
	view.LastActivity = evt.Timestamp
	views[evt.AccountID] = view
	return view, nil
}

// View returns the view for an account, reporting absence via ok.
func (p *Projector) View(accountID string) (View, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	view, ok := p.views[accountID]
	return view, ok
}

// Views returns all views. Order is unspecified: the result is a set of
// current states, not a log.
func (p *Projector) Views() []View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	views := make([]View, 0, len(p.views))
	for _, view := range p.views {
		views = append(views, view)
	}
	return views
}

// RebuildFromEvents discards all views and replays the supplied events in
// order. The result is identical to having processed every event
// incrementally since the beginning of time; that equivalence is a required
// property of the read model, not an optimization.
//
// The replacement map is built aside and swapped in whole, so concurrent
// readers see either the previous views or the finished rebuild, never a
// half-replayed map. On error the previous views are kept.
func (p *Projector) RebuildFromEvents(events []event.Event) error {
	views := make(map[string]View)
	for _, evt := range events {
		if _, err := foldView(views, evt); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.views = views
	p.mu.Unlock()
	return nil
}
