// Package aggregate implements the account decider.
//
// An aggregate is rehydrated by folding an account's event history and then
// decides commands purely: precondition checks against reconstructed state
// followed by event construction at the next sequence number. The fold is
// shared with the projection (account.Apply), which is what keeps write-path
// and read-path replays deterministic relative to each other.
package aggregate
