// Package account defines account state and the pure event fold.
//
// Apply is the single fold used by both the write-path aggregate and the
// read-path projection, so the two can never disagree about what an event
// means. Replaying the same event sequence from the zero state always yields
// an identical State value.
package account

import (
	"fmt"
	"time"

	"github.com/louisbranch/coffers/internal/ledger/domain/event"
)

// DefaultCurrency is the currency assigned to accounts that never declare one.
const DefaultCurrency = "USD"

// State captures account state reconstructed from the event journal.
//
// State is never stored; it is derived by folding events for one account in
// sequence order starting from NewState.
type State struct {
	// AccountID identifies the owning account.
	AccountID string
	// Version is the sequence number of the last applied event (0 = none).
	Version uint64
	// HolderName is the account holder identity, empty until opened.
	HolderName string
	// Balance is the current balance in minor currency units.
	Balance int64
	// Currency is the account currency tag.
	Currency string
	// Closed reports whether the account has been closed.
	Closed bool
	// UpdatedAt is the timestamp of the last applied event.
	UpdatedAt time.Time
}

// NewState returns the zero state for an account: version 0, balance 0,
// default currency, not closed, holder unset.
func NewState(accountID string) State {
	return State{
		AccountID: accountID,
		Currency:  DefaultCurrency,
	}
}

// Opened reports whether the account identity has been established.
func (s State) Opened() bool {
	return s.HolderName != ""
}

// Apply folds one event into state and returns the next state.
//
// The version is taken from the event sequence unconditionally. Callers must
// supply a contiguous ascending sequence; the fold does not re-sort or
// de-duplicate, and folding an out-of-order or repeated event corrupts state.
func Apply(state State, evt event.Event) (State, error) {
	state.Version = evt.Seq
	state.UpdatedAt = evt.Timestamp

	switch evt.Type {
	case event.TypeAccountOpened:
		var payload event.AccountOpenedPayload
		if err := event.UnmarshalPayload(evt, &payload); err != nil {
			return State{}, err
		}
		state.HolderName = payload.HolderName
		if payload.Currency != "" {
			state.Currency = payload.Currency
		}
	case event.TypeFundsDeposited:
		var payload event.FundsDepositedPayload
		if err := event.UnmarshalPayload(evt, &payload); err != nil {
			return State{}, err
		}
		state.Balance += payload.Amount
	case event.TypeFundsWithdrawn:
		var payload event.FundsWithdrawnPayload
		if err := event.UnmarshalPayload(evt, &payload); err != nil {
			return State{}, err
		}
		state.Balance -= payload.Amount
	case event.TypeAccountClosed:
		state.Closed = true
	default:
		return State{}, fmt.Errorf("unknown event type %q", evt.Type)
	}

	return state, nil
}
