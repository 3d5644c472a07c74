package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/coffers/internal/platform/errors"
	"github.com/louisbranch/coffers/internal/platform/id"

	"github.com/louisbranch/coffers/internal/ledger/domain/account"
	"github.com/louisbranch/coffers/internal/ledger/domain/aggregate"
	"github.com/louisbranch/coffers/internal/ledger/domain/command"
	"github.com/louisbranch/coffers/internal/ledger/domain/event"
	"github.com/louisbranch/coffers/internal/ledger/domain/replay"
	"github.com/louisbranch/coffers/internal/ledger/projection"
	"github.com/louisbranch/coffers/internal/ledger/storage"
)

const defaultMaxRetries = 3

// Service orchestrates the command cycle: load history, decide, append with
// an expected-version check, then feed accepted events to the projection.
type Service struct {
	events     storage.EventStore
	views      storage.ViewStore
	projector  *projection.Projector
	now        func() time.Time
	maxRetries int
	tracer     trace.Tracer

	// locks holds one ordering boundary per account, covering the
	// append-then-project step so events reach the projector in journal
	// order. The projector requires exactly-once, in-order delivery per
	// account; without the boundary a writer that committed seq N could be
	// overtaken by a retrying writer committing and projecting seq N+1
	// first, regressing the view.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithViewStore enables write-through persistence of materialized views.
func WithViewStore(views storage.ViewStore) Option {
	return func(s *Service) {
		s.views = views
	}
}

// WithClock overrides the clock used to timestamp emitted events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMaxRetries bounds reload-and-retry cycles after version conflicts.
func WithMaxRetries(retries int) Option {
	return func(s *Service) {
		s.maxRetries = retries
	}
}

// New creates a Service over an event store.
func New(events storage.EventStore, opts ...Option) *Service {
	s := &Service{
		events:     events,
		projector:  projection.NewProjector(),
		now:        time.Now,
		maxRetries: defaultMaxRetries,
		tracer:     otel.Tracer("coffers/ledger"),
		locks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result captures the outcome of an accepted command.
type Result struct {
	AccountID string
	Events    []event.Event
	State     account.State
}

// Execute runs one command through the full cycle.
//
// A stale append (another writer got there first) reloads history and
// re-decides up to the retry bound; the retry is safe because the decider is
// deterministic given the same inputs. Domain rejections and batch
// validation failures are returned without retry.
func (s *Service) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.execute", trace.WithAttributes(
		attribute.String("ledger.account_id", cmd.AccountID),
		attribute.String("ledger.command_type", string(cmd.Type)),
	))
	defer span.End()

	if cmd.RequestID == "" {
		requestID, err := id.NewID()
		if err != nil {
			return Result{}, apperrors.Wrap(apperrors.CodeInternal, "generate request id", err)
		}
		cmd.RequestID = requestID
	}

	for attempt := 0; ; attempt++ {
		history, err := replay.History(ctx, s.events, cmd.AccountID)
		if err != nil {
			return Result{}, err
		}

		agg := aggregate.New(cmd.AccountID, aggregate.WithClock(s.now))
		if err := agg.LoadFromHistory(history); err != nil {
			return Result{}, err
		}
		loadedVersion := agg.Version()

		newEvents, err := agg.HandleCommand(cmd)
		if err != nil {
			return Result{}, err
		}

		// The boundary is held across the append and the projection feed,
		// never across the history-load-and-decide step above; stale
		// decisions are still detected by the expected-version check.
		lock := s.accountLock(cmd.AccountID)
		lock.Lock()
		err = s.events.AppendEvents(ctx, cmd.AccountID, newEvents, loadedVersion)
		if errors.Is(err, storage.ErrVersionConflict) {
			lock.Unlock()
			if attempt < s.maxRetries {
				continue
			}
			return Result{}, err
		}
		if err != nil {
			lock.Unlock()
			return Result{}, err
		}
		projectErr := s.project(ctx, newEvents)
		lock.Unlock()
		if projectErr != nil {
			return Result{}, projectErr
		}

		if err := agg.LoadFromHistory(newEvents); err != nil {
			return Result{}, err
		}
		return Result{
			AccountID: cmd.AccountID,
			Events:    newEvents,
			State:     agg.State(),
		}, nil
	}
}

// accountLock returns the ordering boundary for one account, creating it on
// first use.
func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[accountID] = lock
	}
	return lock
}

// OpenAccount creates a new account and establishes its identity.
func (s *Service) OpenAccount(ctx context.Context, holderName, currency string) (Result, error) {
	accountID, err := id.NewID()
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeInternal, "generate account id", err)
	}
	cmd, err := command.New(accountID, command.TypeOpenAccount, command.OpenAccountPayload{
		HolderName: holderName,
		Currency:   currency,
	})
	if err != nil {
		return Result{}, err
	}
	return s.Execute(ctx, cmd)
}

// Deposit adds funds to an account.
func (s *Service) Deposit(ctx context.Context, accountID string, amount int64, currency string) (Result, error) {
	cmd, err := command.New(accountID, command.TypeDeposit, command.DepositPayload{
		Amount:   amount,
		Currency: currency,
	})
	if err != nil {
		return Result{}, err
	}
	return s.Execute(ctx, cmd)
}

// Withdraw removes funds from an account.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount int64, currency string) (Result, error) {
	cmd, err := command.New(accountID, command.TypeWithdraw, command.WithdrawPayload{
		Amount:   amount,
		Currency: currency,
	})
	if err != nil {
		return Result{}, err
	}
	return s.Execute(ctx, cmd)
}

// CloseAccount closes an account.
func (s *Service) CloseAccount(ctx context.Context, accountID, reason string) (Result, error) {
	cmd, err := command.New(accountID, command.TypeCloseAccount, command.CloseAccountPayload{
		Reason: reason,
	})
	if err != nil {
		return Result{}, err
	}
	return s.Execute(ctx, cmd)
}

// Rebuild reconstructs the entire read model from the journal. It is called
// at startup so the in-memory projector reflects all history, and it
// re-persists every view when a view store is configured.
func (s *Service) Rebuild(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "ledger.rebuild")
	defer span.End()

	events, err := s.events.ListAllEvents(ctx)
	if err != nil {
		return err
	}
	if err := s.projector.RebuildFromEvents(events); err != nil {
		return err
	}
	if s.views == nil {
		return nil
	}
	for _, view := range s.projector.Views() {
		if err := s.views.PutView(ctx, viewRecord(view)); err != nil {
			return err
		}
	}
	return nil
}

// Account returns the materialized view for one account.
func (s *Service) Account(ctx context.Context, accountID string) (projection.View, error) {
	if err := ctx.Err(); err != nil {
		return projection.View{}, err
	}
	view, ok := s.projector.View(accountID)
	if !ok {
		return projection.View{}, storage.ErrNotFound
	}
	return view, nil
}

// Accounts returns all materialized views. Order is unspecified.
func (s *Service) Accounts(ctx context.Context) ([]projection.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.projector.Views(), nil
}

// Events returns an account's full event history in sequence order.
func (s *Service) Events(ctx context.Context, accountID string) ([]event.Event, error) {
	return replay.History(ctx, s.events, accountID)
}

// project feeds accepted events to the in-memory projector and, when
// configured, writes the updated view through to durable storage.
func (s *Service) project(ctx context.Context, events []event.Event) error {
	for _, evt := range events {
		view, err := s.projector.ProcessEvent(evt)
		if err != nil {
			return err
		}
		if s.views != nil {
			if err := s.views.PutView(ctx, viewRecord(view)); err != nil {
				return err
			}
		}
	}
	return nil
}

func viewRecord(view projection.View) storage.ViewRecord {
	return storage.ViewRecord{
		AccountID:    view.AccountID,
		Version:      view.Version,
		HolderName:   view.HolderName,
		Balance:      view.Balance,
		Currency:     view.Currency,
		Closed:       view.Closed,
		LastActivity: view.LastActivity,
	}
}
