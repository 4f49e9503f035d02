// Package quota enforces the per-client persona and message ceilings.
// The counters are deliberately monotonic: deleting a persona does not
// hand the slot back.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/aminmomin2/convocate/internal/kvstore"
)

var (
	// ErrPersonaLimit means the client has used all persona slots.
	ErrPersonaLimit = errors.New("persona limit reached")
	// ErrMessageLimit means the client has used all practice messages.
	ErrMessageLimit = errors.New("message limit reached")
)

type Ledger struct {
	store       kvstore.Store
	maxPersonas int
	maxMessages int
}

func NewLedger(store kvstore.Store, maxPersonas, maxMessages int) *Ledger {
	return &Ledger{store: store, maxPersonas: maxPersonas, maxMessages: maxMessages}
}

// CheckPersonas is the cheap pre-flight gate, run before any parsing or
// model work. It does not reserve anything; ReservePersonas re-checks
// atomically once the participant count is known.
func (l *Ledger) CheckPersonas(ctx context.Context, clientID string) error {
	rec, err := l.store.Get(ctx, clientID)
	if err != nil {
		return fmt.Errorf("read quota record: %w", err)
	}
	if rec.PersonaCount >= l.maxPersonas {
		return fmt.Errorf("%w: %d of %d personas used", ErrPersonaLimit, rec.PersonaCount, l.maxPersonas)
	}
	return nil
}

// ReservePersonas atomically grants as many of the requested persona
// slots as remain under the ceiling. A zero grant means the client is at
// the limit.
func (l *Ledger) ReservePersonas(ctx context.Context, clientID string, want int) (int, kvstore.QuotaRecord, error) {
	granted, rec, err := l.store.ReservePersonas(ctx, clientID, want, l.maxPersonas)
	if err != nil {
		return 0, rec, fmt.Errorf("reserve personas: %w", err)
	}
	return granted, rec, nil
}

// ReserveMessage records one practice-chat message, denying once the
// ceiling is hit.
func (l *Ledger) ReserveMessage(ctx context.Context, clientID string) error {
	allowed, rec, err := l.store.ReserveMessage(ctx, clientID, l.maxMessages)
	if err != nil {
		return fmt.Errorf("reserve message: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: %d of %d messages used", ErrMessageLimit, rec.MessagesUsed, l.maxMessages)
	}
	return nil
}

// Usage returns the client's current counters.
func (l *Ledger) Usage(ctx context.Context, clientID string) (kvstore.QuotaRecord, error) {
	return l.store.Get(ctx, clientID)
}

// MaxPersonas exposes the configured persona ceiling for error messages.
func (l *Ledger) MaxPersonas() int { return l.maxPersonas }
