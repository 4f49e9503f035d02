package kvstore

import (
	"context"
	"sync"
)

// Memory is the default process-local store. A single mutex serializes
// all reservations, which is plenty at this service's scale.
type Memory struct {
	mu      sync.Mutex
	records map[string]QuotaRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]QuotaRecord)}
}

func (m *Memory) Get(_ context.Context, clientID string) (QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[clientID], nil
}

func (m *Memory) ReservePersonas(_ context.Context, clientID string, want, limit int) (int, QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[clientID]
	remaining := limit - rec.PersonaCount
	if remaining < 0 {
		remaining = 0
	}
	granted := want
	if granted > remaining {
		granted = remaining
	}
	rec.PersonaCount += granted
	m.records[clientID] = rec
	return granted, rec, nil
}

func (m *Memory) ReserveMessage(_ context.Context, clientID string, limit int) (bool, QuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[clientID]
	if rec.MessagesUsed >= limit {
		return false, rec, nil
	}
	rec.MessagesUsed++
	m.records[clientID] = rec
	return true, rec, nil
}
