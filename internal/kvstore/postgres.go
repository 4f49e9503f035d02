package kvstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres backs the quota ledger with a shared table so multiple
// service instances enforce one ceiling per client. Reservations run in
// a transaction holding a row lock, which gives the same atomic
// increment-and-check the in-memory store gets from its mutex.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Get(ctx context.Context, clientID string) (QuotaRecord, error) {
	var rec QuotaRecord
	err := p.pool.QueryRow(ctx,
		`SELECT persona_count, messages_used FROM quota_records WHERE client_id = $1`,
		clientID,
	).Scan(&rec.PersonaCount, &rec.MessagesUsed)
	if err == pgx.ErrNoRows {
		return QuotaRecord{}, nil
	}
	if err != nil {
		return QuotaRecord{}, fmt.Errorf("select quota record: %w", err)
	}
	return rec, nil
}

func (p *Postgres) ReservePersonas(ctx context.Context, clientID string, want, limit int) (int, QuotaRecord, error) {
	var granted int
	var rec QuotaRecord
	err := p.withRow(ctx, clientID, func(tx pgx.Tx, current QuotaRecord) error {
		remaining := limit - current.PersonaCount
		if remaining < 0 {
			remaining = 0
		}
		granted = want
		if granted > remaining {
			granted = remaining
		}
		rec = current
		rec.PersonaCount += granted
		_, err := tx.Exec(ctx,
			`UPDATE quota_records SET persona_count = $2 WHERE client_id = $1`,
			clientID, rec.PersonaCount,
		)
		return err
	})
	if err != nil {
		return 0, QuotaRecord{}, err
	}
	return granted, rec, nil
}

func (p *Postgres) ReserveMessage(ctx context.Context, clientID string, limit int) (bool, QuotaRecord, error) {
	var allowed bool
	var rec QuotaRecord
	err := p.withRow(ctx, clientID, func(tx pgx.Tx, current QuotaRecord) error {
		rec = current
		if current.MessagesUsed >= limit {
			allowed = false
			return nil
		}
		allowed = true
		rec.MessagesUsed++
		_, err := tx.Exec(ctx,
			`UPDATE quota_records SET messages_used = $2 WHERE client_id = $1`,
			clientID, rec.MessagesUsed,
		)
		return err
	})
	if err != nil {
		return false, QuotaRecord{}, err
	}
	return allowed, rec, nil
}

// withRow runs fn inside a transaction holding the client's row lock,
// creating the row first if the client is new.
func (p *Postgres) withRow(ctx context.Context, clientID string, fn func(tx pgx.Tx, current QuotaRecord) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO quota_records (client_id, persona_count, messages_used)
		 VALUES ($1, 0, 0) ON CONFLICT (client_id) DO NOTHING`,
		clientID,
	); err != nil {
		return fmt.Errorf("upsert quota record: %w", err)
	}

	var current QuotaRecord
	if err := tx.QueryRow(ctx,
		`SELECT persona_count, messages_used FROM quota_records WHERE client_id = $1 FOR UPDATE`,
		clientID,
	).Scan(&current.PersonaCount, &current.MessagesUsed); err != nil {
		return fmt.Errorf("lock quota record: %w", err)
	}

	if err := fn(tx, current); err != nil {
		return fmt.Errorf("update quota record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
