package edit

import (
	"testing"

	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

func TestResultKeepsHighestPriorityChange(t *testing.T) {
	r := NewResult()
	pos := world.Pos{X: 1}
	r.AddChange(Change{Pos: pos, Before: voxel.Stone, After: voxel.Air, Reason: ReasonDestroy})
	r.AddChange(Change{Pos: pos, Before: voxel.Air, After: voxel.Air, Reason: ReasonDamage, Remaining: 3})

	changes := r.Changes()
	if len(changes) != 1 || changes[0].Reason != ReasonDestroy {
		t.Fatalf("damage must not replace destroy, got %+v", changes)
	}

	r.AddChange(Change{Pos: pos, Before: voxel.Air, After: voxel.Water, Reason: ReasonFlood})
	changes = r.Changes()
	if changes[0].Reason != ReasonFlood || changes[0].Before != voxel.Stone {
		t.Fatalf("flood should win and keep the original before state, got %+v", changes[0])
	}
}

func TestResultMerge(t *testing.T) {
	a := NewResult()
	a.AddChange(Change{Pos: world.Pos{X: 2}, Before: voxel.Air, After: voxel.Dirt, Reason: ReasonPlace})
	a.AddChunk(world.Pos{})

	b := NewResult()
	b.AddChange(Change{Pos: world.Pos{X: 1}, Before: voxel.Dirt, After: voxel.Air, Reason: ReasonDestroy})
	b.AddChunk(world.Pos{X: -4})
	b.AddChunk(world.Pos{})

	a.Merge(b)
	a.Merge(nil)
	changes := a.Changes()
	if len(changes) != 2 || changes[0].Pos.X != 1 || changes[1].Pos.X != 2 {
		t.Fatalf("expected merged changes ordered by position, got %+v", changes)
	}
	if dirty := a.DirtyChunks(); len(dirty) != 2 || dirty[0].X != -4 {
		t.Fatalf("unexpected dirty chunks %v", dirty)
	}
	var empty *Result
	if !empty.Empty() || empty.Changes() != nil {
		t.Fatalf("nil result must read as empty")
	}
}
