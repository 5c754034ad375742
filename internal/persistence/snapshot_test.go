package persistence

import (
	"context"
	"errors"
	"testing"

	"voxelterrain/internal/noise"
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

var testParams = Params{ChunkSize: 4, ChunkHeight: 8, DrawRange: 2, SeedOffset: noise.Vec2i{X: 3, Z: -9}}

func TestKeyRoundTrip(t *testing.T) {
	positions := []world.Pos{
		{},
		{X: 16, Y: -128, Z: 32},
		{X: -48, Y: 0, Z: -16},
	}
	for _, p := range positions {
		key := FormatKey(p)
		got, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", key, err)
		}
		if got != p {
			t.Fatalf("ParseKey(%q) = %v, want %v", key, got, p)
		}
	}
	if got := FormatKey(world.Pos{X: 16, Y: -128, Z: 32}); got != "(16, -128, 32)" {
		t.Fatalf("unexpected key format %q", got)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key     string
		want    world.Pos
		wantErr bool
	}{
		{key: "1,2,3", want: world.Pos{X: 1, Y: 2, Z: 3}},
		{key: " ( -1 , 0 , 7 ) ", want: world.Pos{X: -1, Z: 7}},
		{key: "(1, 2)", wantErr: true},
		{key: "(a, 2, 3)", wantErr: true},
		{key: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseKey(%q): expected error", tc.key)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("ParseKey(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func newTestStore() (*world.Store, *world.Chunk, *world.Chunk) {
	store := world.NewStore(testParams.Dimensions())
	plain := world.NewChunk(world.Pos{}, store.Dimensions())
	plain.SetLocalVoxel(0, 0, 0, voxel.Stone)
	edited := world.NewChunk(world.Pos{X: -4, Y: -8}, store.Dimensions())
	edited.SetLocalVoxel(3, 7, 3, voxel.TreeTrunk)
	edited.MarkModified()
	store.Put(plain)
	store.Put(edited)
	return store, plain, edited
}

func TestCaptureModifiedOnly(t *testing.T) {
	store, _, edited := newTestStore()

	all := Capture(store, testParams, world.Pos{X: 1}, Options{})
	if len(all.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(all.Chunks))
	}
	only := Capture(store, testParams, world.Pos{X: 1}, Options{ModifiedOnly: true})
	if len(only.Chunks) != 1 {
		t.Fatalf("expected 1 modified chunk, got %d", len(only.Chunks))
	}
	if _, ok := only.Chunks[FormatKey(edited.Origin)]; !ok {
		t.Fatalf("expected modified chunk %v in snapshot", edited.Origin)
	}
	if all.ID == only.ID {
		t.Fatalf("expected distinct snapshot ids")
	}
}

func TestRestoreChunks(t *testing.T) {
	store, plain, edited := newTestStore()
	snap := Capture(store, testParams, world.Pos{}, Options{})

	chunks, err := snap.RestoreChunks()
	if err != nil {
		t.Fatalf("RestoreChunks: %v", err)
	}
	restored := world.NewStore(testParams.Dimensions())
	for _, c := range chunks {
		restored.Put(c)
	}
	if got := restored.Voxel(plain.Origin); got != voxel.Stone {
		t.Fatalf("expected stone at %v, got %v", plain.Origin, got)
	}
	c, ok := restored.Get(edited.Origin)
	if !ok || !c.Modified() {
		t.Fatalf("expected modified chunk restored at %v", edited.Origin)
	}
	if got, _ := c.LocalVoxel(3, 7, 3); got != voxel.TreeTrunk {
		t.Fatalf("expected trunk, got %v", got)
	}
}

func TestRestoreChunksRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"bad key", func(s *Snapshot) { s.Chunks["nope"] = ChunkRecord{} }},
		{"unaligned", func(s *Snapshot) {
			s.Chunks["(1, 0, 0)"] = ChunkRecord{Voxels: make([]byte, testParams.Dimensions().Volume())}
		}},
		{"short", func(s *Snapshot) { s.Chunks["(8, 0, 0)"] = ChunkRecord{Voxels: []byte{1}} }},
		{"unknown voxel", func(s *Snapshot) {
			raw := make([]byte, testParams.Dimensions().Volume())
			raw[0] = 200
			s.Chunks["(8, 0, 0)"] = ChunkRecord{Voxels: raw}
		}},
		{"dimensions", func(s *Snapshot) { s.Params.ChunkSize = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, _, _ := newTestStore()
			snap := Capture(store, testParams, world.Pos{}, Options{})
			tc.mutate(snap)
			if _, err := snap.RestoreChunks(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	if _, err := m.Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	store, plain, _ := newTestStore()
	snap := Capture(store, testParams, world.Pos{Y: 70}, Options{})
	if err := m.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap.Chunks[FormatKey(plain.Origin)].Voxels[0] = byte(voxel.Air)

	loaded, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Chunks[FormatKey(plain.Origin)].Voxels[0] != byte(voxel.Stone) {
		t.Fatalf("saved snapshot must not alias the caller's buffers")
	}
	if loaded.ID != snap.ID || loaded.Viewpoint != snap.Viewpoint {
		t.Fatalf("loaded snapshot header mismatch")
	}
}
