package stream

import (
	"sync"

	"voxelterrain/internal/mesh"
	"voxelterrain/internal/world"
)

// integration is a meshed chunk waiting to be handed to the render pool.
type integration struct {
	Pos  world.Pos
	Mesh *mesh.Mesh
}

// integrationQueue hands meshes from cycles to the ticking goroutine.
type integrationQueue struct {
	mu      sync.Mutex
	pending []integration
}

func newIntegrationQueue(capacity int) *integrationQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &integrationQueue{
		pending: make([]integration, 0, capacity),
	}
}

func (q *integrationQueue) Enqueue(items ...integration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, items...)
}

func (q *integrationQueue) Pop() (integration, bool) {
	batch := q.Drain(1)
	if len(batch) == 0 {
		return integration{}, false
	}
	return batch[0], true
}

func (q *integrationQueue) Drain(max int) []integration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	if max <= 0 || max >= len(q.pending) {
		batch := append([]integration(nil), q.pending...)
		q.pending = q.pending[:0]
		return batch
	}
	batch := append([]integration(nil), q.pending[:max]...)
	q.pending = q.pending[max:]
	return batch
}

// Retain drops queued items whose position fails keep and returns how many
// were dropped.
func (q *integrationQueue) Retain(keep func(world.Pos) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.pending[:0]
	for _, item := range q.pending {
		if keep(item.Pos) {
			kept = append(kept, item)
		}
	}
	dropped := len(q.pending) - len(kept)
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = integration{}
	}
	q.pending = kept
	return dropped
}

func (q *integrationQueue) Contains(pos world.Pos) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.pending {
		if item.Pos == pos {
			return true
		}
	}
	return false
}

func (q *integrationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
