package edit

import (
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

type Reason string

const (
	ReasonDamage    Reason = "damage"
	ReasonDestroy   Reason = "destroy"
	ReasonFlood     Reason = "flood"
	ReasonPlace     Reason = "place"
	ReasonOverwrite Reason = "overwrite"
)

var reasonPriority = map[Reason]int{
	ReasonDamage:    1,
	ReasonOverwrite: 2,
	ReasonPlace:     2,
	ReasonDestroy:   3,
	ReasonFlood:     4,
}

// Change captures the before/after state of one voxel. Remaining is the
// durability left after a damaging hit.
type Change struct {
	Pos       world.Pos
	Before    voxel.Type
	After     voxel.Type
	Reason    Reason
	Remaining int
}

// Result accumulates the voxel changes of edits and the chunks that need a
// new mesh.
type Result struct {
	changes map[world.Pos]Change
	chunks  map[world.Pos]struct{}
}

func NewResult() *Result {
	return &Result{
		changes: make(map[world.Pos]Change),
		chunks:  make(map[world.Pos]struct{}),
	}
}

// AddChange records change. A lower priority change never replaces a higher
// one, and the earliest Before is kept.
func (r *Result) AddChange(change Change) {
	if r.changes == nil {
		r.changes = make(map[world.Pos]Change)
	}
	if existing, ok := r.changes[change.Pos]; ok {
		if reasonPriority[existing.Reason] > reasonPriority[change.Reason] {
			return
		}
		change.Before = existing.Before
	}
	r.changes[change.Pos] = change
}

func (r *Result) AddChunk(origin world.Pos) {
	if r.chunks == nil {
		r.chunks = make(map[world.Pos]struct{})
	}
	r.chunks[origin] = struct{}{}
}

// Empty reports whether the edit changed nothing.
func (r *Result) Empty() bool {
	return r == nil || len(r.changes) == 0
}

func (r *Result) Changes() []Change {
	if r == nil || len(r.changes) == 0 {
		return nil
	}
	positions := make([]world.Pos, 0, len(r.changes))
	for p := range r.changes {
		positions = append(positions, p)
	}
	world.SortPositions(positions)
	out := make([]Change, len(positions))
	for i, p := range positions {
		out[i] = r.changes[p]
	}
	return out
}

func (r *Result) DirtyChunks() []world.Pos {
	if r == nil || len(r.chunks) == 0 {
		return nil
	}
	out := make([]world.Pos, 0, len(r.chunks))
	for p := range r.chunks {
		out = append(out, p)
	}
	world.SortPositions(out)
	return out
}

func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	for _, change := range other.changes {
		r.AddChange(change)
	}
	for origin := range other.chunks {
		r.AddChunk(origin)
	}
}
