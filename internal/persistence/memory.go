package persistence

import (
	"context"
	"sync"
)

// MemoryStore keeps the last saved snapshot in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.snap = cloneSnapshot(snap)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil, ErrNoSnapshot
	}
	return cloneSnapshot(m.snap), nil
}
