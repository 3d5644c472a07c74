package aggregate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/coffers/internal/platform/errors"
	"github.com/louisbranch/coffers/internal/platform/id"

	"github.com/louisbranch/coffers/internal/ledger/domain/account"
	"github.com/louisbranch/coffers/internal/ledger/domain/command"
	"github.com/louisbranch/coffers/internal/ledger/domain/event"
)

// Aggregate is the pure decider for one account.
//
// It is seeded with the zero state, rehydrated from history, and turns
// commands into new events or domain rejections. It performs no I/O: it only
// knows the version it was loaded to, and concurrent-modification detection
// is entirely the event store's job at append time.
type Aggregate struct {
	state account.State
	now   func() time.Time
	newID func() (string, error)
}

// Option configures an Aggregate.
type Option func(*Aggregate)

// WithClock overrides the clock used to timestamp emitted events.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregate) {
		a.now = now
	}
}

// WithIDGenerator overrides the event id generator.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(a *Aggregate) {
		a.newID = newID
	}
}

// New seeds an aggregate with the zero state for accountID.
func New(accountID string, opts ...Option) *Aggregate {
	a := &Aggregate{
		state: account.NewState(accountID),
		now:   time.Now,
		newID: id.NewID,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadFromHistory folds an ordered event sequence into current state.
//
// History must be the account's contiguous sequence continuing from the
// current version; a gap or wrong-account event is a caller bug and is
// reported rather than folded.
func (a *Aggregate) LoadFromHistory(events []event.Event) error {
	state := a.state
	for _, evt := range events {
		if evt.AccountID != state.AccountID {
			return fmt.Errorf("event %s targets account %q, aggregate is %q", evt.ID, evt.AccountID, state.AccountID)
		}
		if evt.Seq != state.Version+1 {
			return fmt.Errorf("event sequence gap: expected %d got %d", state.Version+1, evt.Seq)
		}
		next, err := account.Apply(state, evt)
		if err != nil {
			return err
		}
		state = next
	}
	a.state = state
	return nil
}

// State returns a snapshot of current state. State is a value type with no
// reference fields, so the copy cannot be used to mutate the aggregate.
func (a *Aggregate) State() account.State {
	return a.state
}

// Version returns the sequence number of the last applied event.
func (a *Aggregate) Version() uint64 {
	return a.state.Version
}

// HandleCommand validates a command against current state and returns the
// events it produces, or a domain error when a precondition fails.
//
// The decision is pure: the aggregate's own state is not advanced, since the
// emitted events only become facts once the store accepts them. Every
// current command emits exactly one event, but the contract returns a slice
// so multi-event decisions remain possible.
func (a *Aggregate) HandleCommand(cmd command.Command) ([]event.Event, error) {
	validated, err := cmd.Validate()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCommandPayloadInvalid, "invalid command envelope", err)
	}
	cmd = validated
	if cmd.AccountID != a.state.AccountID {
		return nil, apperrors.WithMetadata(apperrors.CodeAccountIDRequired,
			"command targets a different account",
			map[string]string{"account_id": cmd.AccountID, "aggregate_id": a.state.AccountID})
	}

	switch cmd.Type {
	case command.TypeOpenAccount:
		return a.decideOpen(cmd)
	case command.TypeDeposit:
		return a.decideDeposit(cmd)
	case command.TypeWithdraw:
		return a.decideWithdraw(cmd)
	case command.TypeCloseAccount:
		return a.decideClose(cmd)
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeCommandTypeUnknown,
			"unrecognized command type",
			map[string]string{"type": string(cmd.Type)})
	}
}

func (a *Aggregate) decideOpen(cmd command.Command) ([]event.Event, error) {
	var payload command.OpenAccountPayload
	if err := decodePayload(cmd, &payload); err != nil {
		return nil, err
	}
	if a.state.Opened() {
		return nil, apperrors.New(apperrors.CodeAccountAlreadyOpened, "account identity is already established")
	}
	payload.HolderName = strings.TrimSpace(payload.HolderName)
	if payload.HolderName == "" {
		return nil, apperrors.New(apperrors.CodeAccountHolderEmpty, "holder name is required")
	}

	data, err := event.MarshalPayload(event.AccountOpenedPayload{
		HolderName: payload.HolderName,
		Currency:   payload.Currency,
	})
	if err != nil {
		return nil, err
	}
	return a.emit(cmd, event.TypeAccountOpened, data)
}

func (a *Aggregate) decideDeposit(cmd command.Command) ([]event.Event, error) {
	var payload command.DepositPayload
	if err := decodePayload(cmd, &payload); err != nil {
		return nil, err
	}
	if a.state.Closed {
		return nil, apperrors.New(apperrors.CodeAccountClosed, "account is closed")
	}
	if payload.Amount <= 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeAmountNotPositive,
			"deposit amount must be positive",
			map[string]string{"amount": fmt.Sprintf("%d", payload.Amount)})
	}
	currency, err := a.movementCurrency(payload.Currency)
	if err != nil {
		return nil, err
	}

	data, err := event.MarshalPayload(event.FundsDepositedPayload{
		Amount:   payload.Amount,
		Currency: currency,
	})
	if err != nil {
		return nil, err
	}
	return a.emit(cmd, event.TypeFundsDeposited, data)
}

func (a *Aggregate) decideWithdraw(cmd command.Command) ([]event.Event, error) {
	var payload command.WithdrawPayload
	if err := decodePayload(cmd, &payload); err != nil {
		return nil, err
	}
	if a.state.Closed {
		return nil, apperrors.New(apperrors.CodeAccountClosed, "account is closed")
	}
	if payload.Amount <= 0 {
		return nil, apperrors.WithMetadata(apperrors.CodeAmountNotPositive,
			"withdrawal amount must be positive",
			map[string]string{"amount": fmt.Sprintf("%d", payload.Amount)})
	}
	if a.state.Balance < payload.Amount {
		return nil, apperrors.WithMetadata(apperrors.CodeInsufficientFunds,
			"insufficient funds",
			map[string]string{
				"balance": fmt.Sprintf("%d", a.state.Balance),
				"amount":  fmt.Sprintf("%d", payload.Amount),
			})
	}
	currency, err := a.movementCurrency(payload.Currency)
	if err != nil {
		return nil, err
	}

	data, err := event.MarshalPayload(event.FundsWithdrawnPayload{
		Amount:   payload.Amount,
		Currency: currency,
	})
	if err != nil {
		return nil, err
	}
	return a.emit(cmd, event.TypeFundsWithdrawn, data)
}

func (a *Aggregate) decideClose(cmd command.Command) ([]event.Event, error) {
	var payload command.CloseAccountPayload
	if err := decodePayload(cmd, &payload); err != nil {
		return nil, err
	}
	if a.state.Closed {
		return nil, apperrors.New(apperrors.CodeAccountAlreadyClosed, "account is already closed")
	}

	data, err := event.MarshalPayload(event.AccountClosedPayload{Reason: payload.Reason})
	if err != nil {
		return nil, err
	}
	return a.emit(cmd, event.TypeAccountClosed, data)
}

// movementCurrency resolves the effective movement currency and rejects
// currencies that differ from the account's.
func (a *Aggregate) movementCurrency(requested string) (string, error) {
	if requested == "" || requested == a.state.Currency {
		return a.state.Currency, nil
	}
	return "", apperrors.WithMetadata(apperrors.CodeAccountCurrencyMixed,
		"movement currency does not match account currency",
		map[string]string{"account": a.state.Currency, "movement": requested})
}

// emit builds the single resulting event at the next sequence number.
func (a *Aggregate) emit(cmd command.Command, eventType event.Type, payloadJSON []byte) ([]event.Event, error) {
	eventID, err := a.newID()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "generate event id", err)
	}
	ts := a.now().UTC()
	// Timestamps are non-decreasing within an account's sequence even if
	// the wall clock steps backwards between commands.
	if ts.Before(a.state.UpdatedAt) {
		ts = a.state.UpdatedAt
	}
	return []event.Event{
		command.NewEvent(cmd, eventType, eventID, a.state.Version+1, payloadJSON, ts),
	}, nil
}

func decodePayload(cmd command.Command, target any) error {
	if len(cmd.PayloadJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(cmd.PayloadJSON, target); err != nil {
		return apperrors.Wrap(apperrors.CodeCommandPayloadInvalid, "decode command payload", err)
	}
	return nil
}
