package event

import (
	"strings"
	"time"
)

// Type identifies the type of a ledger event.
type Type string

// Account lifecycle events.
const (
	// TypeAccountOpened records the opening of an account.
	TypeAccountOpened Type = "account.opened"
	// TypeAccountClosed records the closing of an account.
	TypeAccountClosed Type = "account.closed"
)

// Movement events.
const (
	// TypeFundsDeposited records funds added to an account.
	TypeFundsDeposited Type = "funds.deposited"
	// TypeFundsWithdrawn records funds removed from an account.
	TypeFundsWithdrawn Type = "funds.withdrawn"
)

// Event represents an immutable event in the account ledger journal.
//
// Events are the sole source of truth: account state and read views are
// derived caches rebuilt by folding the journal in sequence order.
type Event struct {
	// ID is the globally unique event identifier, assigned at creation
	// and never reused.
	ID string
	// AccountID is the account this event belongs to.
	AccountID string
	// Seq is the event sequence number within the account (starts at 1,
	// gap-free). Assigned by the decider as currentVersion+1.
	Seq uint64
	// Timestamp is when the event occurred. Non-decreasing within an
	// account's sequence; cross-account ordering is advisory only.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// RequestID correlates the event with the command that produced it.
	RequestID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// Types returns the closed set of event types emitted by this domain.
func Types() []Type {
	return []Type{
		TypeAccountOpened,
		TypeFundsDeposited,
		TypeFundsWithdrawn,
		TypeAccountClosed,
	}
}

// IsValid reports whether the event type belongs to the closed set.
func (t Type) IsValid() bool {
	switch t {
	case TypeAccountOpened, TypeFundsDeposited, TypeFundsWithdrawn, TypeAccountClosed:
		return true
	default:
		return false
	}
}

// Domain returns the segment before the first dot ("account", "funds").
func (t Type) Domain() string {
	value := string(t)
	if idx := strings.Index(value, "."); idx >= 0 {
		return value[:idx]
	}
	return value
}
