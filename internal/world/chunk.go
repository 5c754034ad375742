package world

import (
	"sync"

	"voxelterrain/internal/voxel"
)

// Column is a horizontal world position.
type Column struct {
	X int
	Z int
}

// TreeData holds tree trunk columns found for a chunk and the leaf voxels
// queued for placement once neighbouring chunks exist.
type TreeData struct {
	Positions map[Column]struct{}
	Leaves    []Pos
}

func (t *TreeData) HasTree(x, z int) bool {
	if t == nil || t.Positions == nil {
		return false
	}
	_, ok := t.Positions[Column{X: x, Z: z}]
	return ok
}

// Chunk stores a dense voxel grid for one chunk-sized region of the world.
type Chunk struct {
	Origin Pos
	Dim    Dimensions

	mu       sync.RWMutex
	voxels   []voxel.Type
	modified bool
	trees    TreeData
}

// NewChunk allocates a chunk filled with air.
func NewChunk(origin Pos, dim Dimensions) *Chunk {
	voxels := make([]voxel.Type, dim.Volume())
	for i := range voxels {
		voxels[i] = voxel.Air
	}
	return &Chunk{
		Origin: origin,
		Dim:    dim,
		voxels: voxels,
	}
}

// LocalVoxel returns the voxel at a local position and whether the position
// lies inside the chunk.
func (c *Chunk) LocalVoxel(x, y, z int) (voxel.Type, bool) {
	if !c.Dim.Contains(x, y, z) {
		return voxel.Nothing, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voxels[c.Dim.Index(x, y, z)], true
}

// SetLocalVoxel writes a voxel at a local position. Writing Nothing is
// ignored so the sentinel never enters storage.
func (c *Chunk) SetLocalVoxel(x, y, z int, t voxel.Type) bool {
	if !c.Dim.Contains(x, y, z) || t == voxel.Nothing {
		return false
	}
	c.mu.Lock()
	c.voxels[c.Dim.Index(x, y, z)] = t
	c.mu.Unlock()
	return true
}

// Local converts a world position to chunk-local coordinates.
func (c *Chunk) Local(p Pos) Pos {
	return p.Sub(c.Origin)
}

func (c *Chunk) Modified() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modified
}

func (c *Chunk) MarkModified() {
	c.mu.Lock()
	c.modified = true
	c.mu.Unlock()
}

func (c *Chunk) SetTrees(positions []Column) {
	set := make(map[Column]struct{}, len(positions))
	for _, p := range positions {
		set[p] = struct{}{}
	}
	c.mu.Lock()
	c.trees = TreeData{Positions: set}
	c.mu.Unlock()
}

func (c *Chunk) HasTree(x, z int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trees.HasTree(x, z)
}

// QueueLeaves records local leaf positions, which may fall outside the chunk.
func (c *Chunk) QueueLeaves(leaves ...Pos) {
	c.mu.Lock()
	c.trees.Leaves = append(c.trees.Leaves, leaves...)
	c.mu.Unlock()
}

func (c *Chunk) PendingLeaves() []Pos {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Pos(nil), c.trees.Leaves...)
}

// TakePendingLeaves returns the queued leaves and clears the queue.
func (c *Chunk) TakePendingLeaves() []Pos {
	c.mu.Lock()
	defer c.mu.Unlock()
	leaves := c.trees.Leaves
	c.trees.Leaves = nil
	return leaves
}

// Voxels returns a copy of the flattened voxel array.
func (c *Chunk) Voxels() []voxel.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]voxel.Type(nil), c.voxels...)
}

// RestoreChunk rebuilds a chunk from persisted voxels. The slice must match
// the chunk volume.
func RestoreChunk(origin Pos, dim Dimensions, voxels []voxel.Type, modified bool) (*Chunk, bool) {
	if len(voxels) != dim.Volume() {
		return nil, false
	}
	c := &Chunk{
		Origin:   origin,
		Dim:      dim,
		voxels:   append([]voxel.Type(nil), voxels...),
		modified: modified,
	}
	for i, t := range c.voxels {
		if t == voxel.Nothing {
			c.voxels[i] = voxel.Air
		}
	}
	return c, true
}
