package stream

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voxelterrain/internal/biome"
	"voxelterrain/internal/layers"
	"voxelterrain/internal/noise"
	"voxelterrain/internal/persistence"
	"voxelterrain/internal/render"
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

var testParams = Params{ChunkSize: 4, ChunkHeight: 8, DrawRange: 1, SeedOffset: noise.Vec2i{X: 2, Z: 3}}

type testLog struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *testLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func newTestTerrain(t *testing.T) (*Terrain, *render.MemoryPool) {
	t.Helper()
	catalog, err := voxel.NewCatalog(voxel.DefaultProperties(), voxel.DefaultAtlas())
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	flat := &biome.Generator{
		Name:       "flat",
		FlatHeight: 4,
		Layers: layers.Chain{
			Column: []layers.Handler{
				{Kind: layers.Surface, Voxel: voxel.Grass},
				{Kind: layers.Underground, Voxel: voxel.Dirt},
				{Kind: layers.Air},
			},
		},
	}
	selector, err := biome.NewSelector([]biome.Entry{{Start: 0, End: 1, Generator: flat}}, noise.Settings{}, noise.Warp{}, noise.NewSource(1))
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	pool := render.NewMemoryPool()
	terrain, err := New(Options{
		Params:       testParams,
		Workers:      2,
		PollInterval: 5 * time.Millisecond,
		TickInterval: time.Millisecond,
		Logger:       log.New(&testLog{}, "", 0),
	}, catalog, selector, pool)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(terrain.Close)
	return terrain, pool
}

func drain(terrain *Terrain) int {
	n := 0
	for terrain.Tick() {
		n++
	}
	return n
}

func TestCycleGeneratesMeshesAndIntegrates(t *testing.T) {
	terrain, pool := newTestTerrain(t)
	var created, generated atomic.Int32
	terrain.OnWorldCreated(func() { created.Add(1) })
	terrain.OnNewChunksGenerated(func() { generated.Add(1) })

	if err := terrain.Cycle(context.Background(), world.Pos{}); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	dim := testParams.Dimensions()
	if got, want := terrain.Store().Len(), len(RequiredPositions(dim, world.Pos{}, 2)); got != want {
		t.Fatalf("expected %d data chunks, got %d", want, got)
	}
	renderWant := len(RequiredPositions(dim, world.Pos{}, 1))
	if terrain.Pending() != renderWant {
		t.Fatalf("expected %d queued meshes, got %d", renderWant, terrain.Pending())
	}
	if created.Load() != 0 {
		t.Fatalf("world created must wait for integration")
	}

	if !terrain.Tick() {
		t.Fatalf("expected a mesh to integrate")
	}
	if pool.Active() != 1 {
		t.Fatalf("expected one chunk per tick, got %d", pool.Active())
	}
	if n := drain(terrain); n != renderWant-1 {
		t.Fatalf("expected %d further integrations, got %d", renderWant-1, n)
	}
	if created.Load() != 1 || generated.Load() != 0 {
		t.Fatalf("expected world created once, got created=%d generated=%d", created.Load(), generated.Load())
	}
	if terrain.RenderedCount() != renderWant || pool.Uploads() != renderWant {
		t.Fatalf("expected %d rendered chunks, got %d (%d uploads)", renderWant, terrain.RenderedCount(), pool.Uploads())
	}

	if got := terrain.Store().Voxel(world.Pos{X: 1, Y: 4, Z: 1}); got != voxel.Grass {
		t.Fatalf("expected grass surface, got %v", got)
	}
	if got := terrain.Store().Voxel(world.Pos{X: 1, Y: -5, Z: 1}); got != voxel.Dirt {
		t.Fatalf("expected dirt below y=0, got %v", got)
	}

	if err := terrain.Cycle(context.Background(), world.Pos{X: 40}); err != nil {
		t.Fatalf("second Cycle: %v", err)
	}
	if generated.Load() != 1 {
		t.Fatalf("expected new chunks notification, got %d", generated.Load())
	}
	drain(terrain)
	if created.Load() != 1 {
		t.Fatalf("world created must fire only once, got %d", created.Load())
	}
	if terrain.Rendered(world.Pos{}) {
		t.Fatalf("origin render chunk should have been evicted")
	}
	if pool.Active() != terrain.RenderedCount() {
		t.Fatalf("pool holds %d objects for %d rendered chunks", pool.Active(), terrain.RenderedCount())
	}
	if terrain.Store().Has(world.Pos{}) {
		t.Fatalf("unmodified origin data chunk should have been evicted")
	}
}

func TestCycleKeepsModifiedChunks(t *testing.T) {
	terrain, _ := newTestTerrain(t)
	if err := terrain.Cycle(context.Background(), world.Pos{}); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	c, ok := terrain.Store().Get(world.Pos{})
	if !ok {
		t.Fatalf("expected origin chunk")
	}
	c.SetLocalVoxel(0, 4, 0, voxel.Stone)
	c.MarkModified()

	if err := terrain.Cycle(context.Background(), world.Pos{X: 400}); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if got := terrain.Store().Voxel(world.Pos{Y: 4}); got != voxel.Stone {
		t.Fatalf("modified chunk lost its edit: %v", got)
	}
}

func TestCycleCancelledMergesNothing(t *testing.T) {
	terrain, _ := newTestTerrain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := terrain.Cycle(ctx, world.Pos{})
	if !errors.Is(err, ErrCycleCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled cycle, got %v", err)
	}
	if terrain.Store().Len() != 0 || terrain.Pending() != 0 {
		t.Fatalf("cancelled cycle merged %d chunks, queued %d meshes", terrain.Store().Len(), terrain.Pending())
	}
}

// occupyWorkers parks n blocking tasks on the terrain's worker pool and
// returns the function that lets them finish.
func occupyWorkers(t *testing.T, terrain *Terrain, n int) func() {
	t.Helper()
	started := make(chan struct{}, n)
	gate := make(chan struct{})
	for i := 0; i < n; i++ {
		terrain.workers.Submit(func() {
			started <- struct{}{}
			<-gate
		})
	}
	for i := 0; i < n; i++ {
		<-started
	}
	var once sync.Once
	release := func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)
	return release
}

// cancelDuringPhase runs a cycle at viewpoint while every worker is busy,
// cancels it once the cycle has handed tasks to the pool and returns the
// cycle's error.
func cancelDuringPhase(t *testing.T, terrain *Terrain, viewpoint world.Pos) error {
	t.Helper()
	release := occupyWorkers(t, terrain, terrain.opts.Workers)
	baseline := terrain.workers.SubmittedTasks()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- terrain.Cycle(ctx, viewpoint) }()

	deadline := time.Now().Add(2 * time.Second)
	for terrain.workers.SubmittedTasks() <= baseline {
		if time.Now().After(deadline) {
			release()
			t.Fatalf("cycle never submitted work to the pool")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	release()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("cancelled cycle did not return")
		return nil
	}
}

func TestCycleCancelledDuringGeneration(t *testing.T) {
	terrain, pool := newTestTerrain(t)

	err := cancelDuringPhase(t, terrain, world.Pos{})
	if !errors.Is(err, ErrCycleCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled cycle, got %v", err)
	}
	if terrain.Store().Len() != 0 || terrain.Pending() != 0 {
		t.Fatalf("cancelled generation merged %d chunks, queued %d meshes", terrain.Store().Len(), terrain.Pending())
	}
	if terrain.Tick() || pool.Uploads() != 0 {
		t.Fatalf("cancelled generation reached the render pool")
	}
}

func TestCycleCancelledDuringMeshing(t *testing.T) {
	source, _ := newTestTerrain(t)
	if err := source.Cycle(context.Background(), world.Pos{}); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	snap := source.Snapshot(world.Pos{}, persistence.Options{})

	terrain, pool := newTestTerrain(t)
	if err := terrain.Load(snap); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if plan := terrain.Plan(world.Pos{}); len(plan.DataCreate) != 0 || len(plan.RenderCreate) == 0 {
		t.Fatalf("expected a meshing-only cycle, got %d data and %d render creates", len(plan.DataCreate), len(plan.RenderCreate))
	}
	loaded := terrain.Store().Len()

	err := cancelDuringPhase(t, terrain, world.Pos{})
	if !errors.Is(err, ErrCycleCancelled) {
		t.Fatalf("expected cancelled cycle, got %v", err)
	}
	if terrain.Store().Len() != loaded {
		t.Fatalf("store changed from %d to %d chunks", loaded, terrain.Store().Len())
	}
	if terrain.Pending() != 0 || terrain.RenderedCount() != 0 {
		t.Fatalf("cancelled meshing queued %d meshes, rendered %d", terrain.Pending(), terrain.RenderedCount())
	}
	if terrain.Tick() || pool.Uploads() != 0 {
		t.Fatalf("cancelled meshing reached the render pool")
	}
}

func TestCloseCancelsCycles(t *testing.T) {
	terrain, _ := newTestTerrain(t)
	terrain.Close()
	if err := terrain.Cycle(context.Background(), world.Pos{}); !errors.Is(err, ErrCycleCancelled) {
		t.Fatalf("expected cancelled cycle after Close, got %v", err)
	}
}

func TestLoadSnapshotSeedsStore(t *testing.T) {
	terrain, _ := newTestTerrain(t)

	dim := world.Dimensions{Size: 4, Height: 8}
	source := world.NewStore(dim)
	edited := world.NewChunk(world.Pos{X: 400}, dim)
	edited.SetLocalVoxel(1, 1, 1, voxel.Ice)
	edited.MarkModified()
	source.Put(edited)
	params := persistence.Params{ChunkSize: 4, ChunkHeight: 8, DrawRange: 2, SeedOffset: noise.Vec2i{X: 9}}
	snap := persistence.Capture(source, params, world.Pos{X: 400}, persistence.Options{ModifiedOnly: true})

	if err := terrain.Load(snap); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if terrain.Params().DrawRange != 2 || terrain.Params().SeedOffset.X != 9 {
		t.Fatalf("expected snapshot parameters, got %+v", terrain.Params())
	}
	if err := terrain.Cycle(context.Background(), world.Pos{}); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if got := terrain.Store().Voxel(world.Pos{X: 401, Y: 1, Z: 1}); got != voxel.Ice {
		t.Fatalf("expected loaded edit to survive a distant cycle, got %v", got)
	}
	if err := terrain.Load(snap); err == nil {
		t.Fatalf("expected Load to fail once streaming started")
	}

	out := terrain.Snapshot(world.Pos{}, persistence.Options{ModifiedOnly: true})
	if len(out.Chunks) != 1 {
		t.Fatalf("expected only the modified chunk in snapshot, got %d", len(out.Chunks))
	}
}

func TestRemesh(t *testing.T) {
	terrain, pool := newTestTerrain(t)
	if terrain.Remesh(world.Pos{}) {
		t.Fatalf("remesh of an unrendered chunk must be a no-op")
	}
	if err := terrain.Cycle(context.Background(), world.Pos{}); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	drain(terrain)
	before := pool.Uploads()
	if !terrain.Remesh(world.Pos{}) {
		t.Fatalf("expected remesh of rendered chunk")
	}
	if pool.Uploads() != before+1 {
		t.Fatalf("expected one upload, got %d", pool.Uploads()-before)
	}
}

func TestRunStreamsAroundViewpoint(t *testing.T) {
	terrain, _ := newTestTerrain(t)

	var mu sync.Mutex
	viewpoint := world.Pos{}
	provider := ViewpointFunc(func() world.Pos {
		mu.Lock()
		defer mu.Unlock()
		return viewpoint
	})

	created := make(chan struct{})
	terrain.OnWorldCreated(func() { close(created) })
	generated := make(chan struct{}, 4)
	terrain.OnNewChunksGenerated(func() { generated <- struct{}{} })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- terrain.Run(ctx, provider) }()

	select {
	case <-created:
	case <-ctx.Done():
		t.Fatalf("world was never created")
	}

	mu.Lock()
	viewpoint = world.Pos{X: 64}
	mu.Unlock()
	select {
	case <-generated:
	case <-ctx.Done():
		t.Fatalf("moving the viewpoint did not trigger a cycle")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Run to stop with context.Canceled, got %v", err)
	}
	if terrain.Cycles() < 2 {
		t.Fatalf("expected at least 2 cycles, got %d", terrain.Cycles())
	}
}

func TestPauseHoldsOffCycles(t *testing.T) {
	terrain, _ := newTestTerrain(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	paused := make(chan struct{})
	go func() {
		terrain.Pause(func() {
			close(entered)
			<-release
		})
		close(paused)
	}()
	<-entered

	done := make(chan error, 1)
	go func() { done <- terrain.Cycle(context.Background(), world.Pos{}) }()

	time.Sleep(20 * time.Millisecond)
	if terrain.Cycles() != 0 {
		t.Fatalf("cycle ran while paused")
	}
	close(release)
	<-paused
	if err := <-done; err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if terrain.Cycles() != 1 {
		t.Fatalf("expected one cycle after pause, got %d", terrain.Cycles())
	}
}
