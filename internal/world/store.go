package world

import (
	"sort"
	"sync"

	"voxelterrain/internal/voxel"
)

// Store owns every loaded data chunk keyed by chunk origin. Chunks never
// point back at the store; callers pass it explicitly.
type Store struct {
	dim Dimensions

	mu     sync.RWMutex
	chunks map[Pos]*Chunk
}

func NewStore(dim Dimensions) *Store {
	return &Store{
		dim:    dim,
		chunks: make(map[Pos]*Chunk),
	}
}

func (s *Store) Dimensions() Dimensions {
	return s.dim
}

func (s *Store) Get(origin Pos) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[origin]
	return c, ok
}

func (s *Store) Has(origin Pos) bool {
	_, ok := s.Get(origin)
	return ok
}

func (s *Store) Put(c *Chunk) {
	s.mu.Lock()
	s.chunks[c.Origin] = c
	s.mu.Unlock()
}

func (s *Store) Delete(origin Pos) {
	s.mu.Lock()
	delete(s.chunks, origin)
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Keys returns the loaded chunk origins in a stable order.
func (s *Store) Keys() []Pos {
	s.mu.RLock()
	keys := make([]Pos, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	SortPositions(keys)
	return keys
}

// Chunks returns the loaded chunks ordered by origin.
func (s *Store) Chunks() []*Chunk {
	keys := s.Keys()
	out := make([]*Chunk, 0, len(keys))
	s.mu.RLock()
	for _, k := range keys {
		if c, ok := s.chunks[k]; ok {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	return out
}

// ChunkFor returns the chunk containing world position p.
func (s *Store) ChunkFor(p Pos) (*Chunk, bool) {
	return s.Get(s.dim.ChunkOrigin(p))
}

// Voxel returns the voxel at world position p, or Nothing when unloaded.
func (s *Store) Voxel(p Pos) voxel.Type {
	c, ok := s.ChunkFor(p)
	if !ok {
		return voxel.Nothing
	}
	local := c.Local(p)
	t, _ := c.LocalVoxel(local.X, local.Y, local.Z)
	return t
}

// SetVoxel writes the voxel at world position p. Unloaded positions are a
// no-op.
func (s *Store) SetVoxel(p Pos, t voxel.Type) bool {
	c, ok := s.ChunkFor(p)
	if !ok {
		return false
	}
	local := c.Local(p)
	return c.SetLocalVoxel(local.X, local.Y, local.Z, t)
}

// ChunkVoxel reads a voxel by chunk-local coordinates, following positions
// outside the chunk into the store.
func (s *Store) ChunkVoxel(c *Chunk, local Pos) voxel.Type {
	if t, ok := c.LocalVoxel(local.X, local.Y, local.Z); ok {
		return t
	}
	return s.Voxel(c.Origin.Add(local))
}

// SetChunkVoxel writes a voxel by chunk-local coordinates, following
// positions outside the chunk into the store.
func (s *Store) SetChunkVoxel(c *Chunk, local Pos, t voxel.Type) bool {
	if c.SetLocalVoxel(local.X, local.Y, local.Z, t) {
		return true
	}
	if c.Dim.Contains(local.X, local.Y, local.Z) {
		return false
	}
	return s.SetVoxel(c.Origin.Add(local), t)
}

// IsOnEdge reports whether world position p sits on a boundary face of c.
func IsOnEdge(c *Chunk, p Pos) bool {
	l := c.Local(p)
	return l.X == 0 || l.X == c.Dim.Size-1 ||
		l.Y == 0 || l.Y == c.Dim.Height-1 ||
		l.Z == 0 || l.Z == c.Dim.Size-1
}

// EdgeNeighbours returns the loaded chunks sharing the boundary faces of c
// that world position p touches.
func (s *Store) EdgeNeighbours(c *Chunk, p Pos) []*Chunk {
	l := c.Local(p)
	var adjacent []Pos
	if l.X == 0 {
		adjacent = append(adjacent, p.Add(Pos{X: -1}))
	}
	if l.X == c.Dim.Size-1 {
		adjacent = append(adjacent, p.Add(Pos{X: 1}))
	}
	if l.Y == 0 {
		adjacent = append(adjacent, p.Add(Pos{Y: -1}))
	}
	if l.Y == c.Dim.Height-1 {
		adjacent = append(adjacent, p.Add(Pos{Y: 1}))
	}
	if l.Z == 0 {
		adjacent = append(adjacent, p.Add(Pos{Z: -1}))
	}
	if l.Z == c.Dim.Size-1 {
		adjacent = append(adjacent, p.Add(Pos{Z: 1}))
	}

	out := make([]*Chunk, 0, len(adjacent))
	for _, q := range adjacent {
		if n, ok := s.ChunkFor(q); ok && n != c {
			out = append(out, n)
		}
	}
	return out
}

// SortPositions orders positions by x, then y, then z.
func SortPositions(ps []Pos) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].X != ps[j].X {
			return ps[i].X < ps[j].X
		}
		if ps[i].Y != ps[j].Y {
			return ps[i].Y < ps[j].Y
		}
		return ps[i].Z < ps[j].Z
	})
}
