// Package event defines the canonical event envelope for the account ledger
// write path.
//
// Events are immutable business facts emitted by accepted commands. Per
// account they form a total, gap-free sequence starting at 1; once appended
// they are never mutated or deleted. The envelope and payload shapes are the
// wire contract with any transport layer, so type tags and payload fields
// must be preserved exactly by every serializer.
package event
