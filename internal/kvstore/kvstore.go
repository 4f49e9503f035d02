// Package kvstore holds the backing stores for per-client quota records.
// The ledger logic lives in internal/quota; this package only provides
// atomic read-modify-write primitives so a multi-instance deployment can
// swap the in-memory map for Postgres.
package kvstore

import "context"

// QuotaRecord is a client's monotonic usage counters. Deleting personas
// never decrements PersonaCount: the limit is a permanent ceiling.
type QuotaRecord struct {
	PersonaCount int
	MessagesUsed int
}

// Store is the injectable quota backing store. Both reservation calls
// are atomic increment-and-check operations: two concurrent requests for
// the same client must never both pass a check the other's increment
// would have failed.
type Store interface {
	// Get returns the current record for a client, zero-valued when the
	// client is unknown.
	Get(ctx context.Context, clientID string) (QuotaRecord, error)

	// ReservePersonas grants up to want persona slots without letting
	// PersonaCount pass limit, returning how many were granted and the
	// record after the grant.
	ReservePersonas(ctx context.Context, clientID string, want, limit int) (int, QuotaRecord, error)

	// ReserveMessage grants one message slot unless MessagesUsed has
	// reached limit, returning whether the slot was granted.
	ReserveMessage(ctx context.Context, clientID string, limit int) (bool, QuotaRecord, error)
}
