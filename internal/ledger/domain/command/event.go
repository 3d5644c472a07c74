package command

import (
	"time"

	"github.com/louisbranch/coffers/internal/ledger/domain/event"
)

// NewEvent builds an event.Event by copying the shared envelope fields from a
// command. Callers supply the event-specific type, sequence, payload, and
// timestamp. This keeps per-decider boilerplate down and ensures new envelope
// fields are forwarded automatically.
func NewEvent(cmd Command, eventType event.Type, id string, seq uint64, payloadJSON []byte, now time.Time) event.Event {
	return event.Event{
		ID:          id,
		AccountID:   cmd.AccountID,
		Seq:         seq,
		Timestamp:   now,
		Type:        eventType,
		RequestID:   cmd.RequestID,
		PayloadJSON: payloadJSON,
	}
}
