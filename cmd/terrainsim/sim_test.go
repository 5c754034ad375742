package main

import (
	"bytes"
	"context"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxelterrain/internal/config"
	"voxelterrain/internal/persistence"
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.World.ChunkSize = 8
	cfg.World.ChunkHeight = 40
	cfg.World.DrawRange = 1
	cfg.Stream.Workers = 2
	cfg.Stream.PollInterval = config.Duration(10 * time.Millisecond)
	cfg.Stream.TickInterval = config.Duration(time.Millisecond)
	cfg.Persistence.Autosave = 0
	return cfg
}

func runSimulation(t *testing.T, cfg *config.Config, opts simOptions) string {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sim, err := newSimulation(ctx, cfg, opts, logger)
	if err != nil {
		t.Fatalf("newSimulation: %v", err)
	}
	if err := sim.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sim.Close()
	if ctx.Err() != nil {
		t.Fatalf("simulation did not finish in time:\n%s", buf.String())
	}
	return buf.String()
}

func TestSimulationWalksEditsAndResumes(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	logs := runSimulation(t, cfg, simOptions{SaveDir: dir, NewGame: true, Steps: 2})
	for _, want := range []string{"starting a new game", "terrain created", "dig at", "walked 2 steps"} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected log line %q in:\n%s", want, logs)
		}
	}

	saves, err := persistence.OpenDiskStore(dir, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("OpenDiskStore: %v", err)
	}
	snap, err := saves.Load(context.Background())
	if err != nil {
		t.Fatalf("load saved world: %v", err)
	}
	if err := saves.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if snap.Viewpoint != (world.Pos{X: 32}) {
		t.Fatalf("expected saved viewpoint two steps out, got %v", snap.Viewpoint)
	}
	if len(snap.Chunks) == 0 {
		t.Fatalf("expected saved chunks")
	}

	previews := filepath.Join(t.TempDir(), "previews")
	logs = runSimulation(t, cfg, simOptions{SaveDir: dir, Steps: 1, PreviewDir: previews})
	if strings.Contains(logs, "starting a new game") {
		t.Fatalf("expected the saved world to be resumed:\n%s", logs)
	}
	if !strings.Contains(logs, "loaded") || !strings.Contains(logs, "viewpoint moved to (48, 0, 0)") {
		t.Fatalf("expected resume from the saved viewpoint:\n%s", logs)
	}
	written, err := filepath.Glob(filepath.Join(previews, "chunk_48_*_0.png"))
	if err != nil || len(written) == 0 {
		t.Fatalf("expected previews of the final column, got %v %v", written, err)
	}
}

func TestSurfaceAt(t *testing.T) {
	catalog, err := voxel.NewCatalog(voxel.DefaultProperties(), voxel.DefaultAtlas())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	store := world.NewStore(world.Dimensions{Size: 4, Height: 8})
	c := world.NewChunk(world.Pos{}, store.Dimensions())
	store.Put(c)
	c.SetLocalVoxel(1, 0, 1, voxel.Stone)
	c.SetLocalVoxel(1, 2, 1, voxel.Dirt)
	c.SetLocalVoxel(1, 3, 1, voxel.Water)

	got, ok := surfaceAt(store, catalog, 1, 1, 8)
	if !ok || got != (world.Pos{X: 1, Y: 2, Z: 1}) {
		t.Fatalf("expected dirt at (1, 2, 1), got %v %v", got, ok)
	}
	if _, ok := surfaceAt(store, catalog, 40, 1, 8); ok {
		t.Fatalf("expected no surface in an unloaded column")
	}
}

func TestWalkerSteps(t *testing.T) {
	w := newWalker(world.Pos{X: -3, Y: 12, Z: 5}, 10)
	if got := w.Step(); got != (world.Pos{X: 7, Y: 12, Z: 5}) {
		t.Fatalf("unexpected position after step: %v", got)
	}
	if got := w.Viewpoint(); got != (world.Pos{X: 7, Y: 12, Z: 5}) {
		t.Fatalf("unexpected viewpoint: %v", got)
	}
}
