package world

import (
	"testing"

	"voxelterrain/internal/voxel"
)

func TestIndexPositionRoundTrip(t *testing.T) {
	dims := []Dimensions{
		{Size: 1, Height: 1},
		{Size: 3, Height: 5},
		{Size: 16, Height: 128},
	}
	for _, dim := range dims {
		for index := 0; index < dim.Volume(); index++ {
			x, y, z := dim.Position(index)
			if !dim.Contains(x, y, z) {
				t.Fatalf("%+v: position %d -> (%d,%d,%d) out of bounds", dim, index, x, y, z)
			}
			if got := dim.Index(x, y, z); got != index {
				t.Fatalf("%+v: index(position(%d)) = %d", dim, index, got)
			}
		}
	}
}

func TestChunkOriginFloorsNegativeCoordinates(t *testing.T) {
	dim := Dimensions{Size: 16, Height: 32}
	tests := []struct {
		in   Pos
		want Pos
	}{
		{Pos{0, 0, 0}, Pos{0, 0, 0}},
		{Pos{15, 31, 15}, Pos{0, 0, 0}},
		{Pos{16, 32, 16}, Pos{16, 32, 16}},
		{Pos{-1, -1, -1}, Pos{-16, -32, -16}},
		{Pos{-16, -32, -17}, Pos{-16, -32, -32}},
	}
	for _, tc := range tests {
		if got := dim.ChunkOrigin(tc.in); got != tc.want {
			t.Fatalf("ChunkOrigin(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewChunkHoldsNoSentinel(t *testing.T) {
	c := NewChunk(Pos{}, Dimensions{Size: 4, Height: 4})
	if len(c.Voxels()) != 4*4*4 {
		t.Fatalf("expected %d voxels, got %d", 64, len(c.Voxels()))
	}
	if c.SetLocalVoxel(1, 1, 1, voxel.Nothing) {
		t.Fatalf("writing Nothing must be rejected")
	}
	for i, v := range c.Voxels() {
		if v == voxel.Nothing {
			t.Fatalf("voxel %d holds the unloaded sentinel", i)
		}
	}
}

func TestRestoreChunkValidatesLength(t *testing.T) {
	dim := Dimensions{Size: 2, Height: 2}
	if _, ok := RestoreChunk(Pos{}, dim, make([]voxel.Type, 3), false); ok {
		t.Fatalf("expected short voxel slice to be rejected")
	}
	voxels := make([]voxel.Type, dim.Volume())
	voxels[0] = voxel.Stone
	c, ok := RestoreChunk(Pos{X: 2}, dim, voxels, true)
	if !ok {
		t.Fatalf("expected restore to succeed")
	}
	if !c.Modified() {
		t.Fatalf("expected modified flag to survive restore")
	}
	if v, _ := c.LocalVoxel(0, 0, 0); v != voxel.Stone {
		t.Fatalf("expected stone at origin, got %v", v)
	}
	if v, _ := c.LocalVoxel(1, 0, 0); v != voxel.Air {
		t.Fatalf("expected zero value to restore as air, got %v", v)
	}
}
