package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"

	"voxelterrain/internal/biome"
	"voxelterrain/internal/mesh"
	"voxelterrain/internal/noise"
	"voxelterrain/internal/persistence"
	"voxelterrain/internal/render"
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

// ErrCycleCancelled wraps the context error of an abandoned streaming cycle.
var ErrCycleCancelled = errors.New("streaming cycle cancelled")

const (
	DefaultPollInterval = time.Second
	DefaultTickInterval = 16 * time.Millisecond
)

// Params are the world parameters shared by every chunk.
type Params struct {
	ChunkSize   int
	ChunkHeight int
	DrawRange   int
	SeedOffset  noise.Vec2i
}

func (p Params) Dimensions() world.Dimensions {
	return world.Dimensions{Size: p.ChunkSize, Height: p.ChunkHeight}
}

func (p Params) snapshotParams() persistence.Params {
	return persistence.Params{
		ChunkSize:   p.ChunkSize,
		ChunkHeight: p.ChunkHeight,
		DrawRange:   p.DrawRange,
		SeedOffset:  p.SeedOffset,
	}
}

type Options struct {
	Params            Params
	Workers           int
	PollInterval      time.Duration
	TickInterval      time.Duration
	IntegrationBuffer int
	Logger            *log.Logger
}

// Terrain streams chunks around a moving viewpoint: it generates data chunks
// on a worker pool, meshes them and integrates one mesh per tick into the
// render pool.
type Terrain struct {
	opts    Options
	logger  *log.Logger
	catalog *voxel.Catalog
	biomes  *biome.Selector
	pool    render.Pool
	workers pond.Pool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	cycleMu sync.Mutex

	mu              sync.Mutex
	params          Params
	store           *world.Store
	renders         map[world.Pos]render.Handle
	field           *biome.Field
	cycles          int
	created         bool
	awaitingCreated bool
	onWorldCreated  []func()
	onNewChunks     []func()

	queue *integrationQueue
}

func New(opts Options, catalog *voxel.Catalog, biomes *biome.Selector, pool render.Pool) (*Terrain, error) {
	if catalog == nil {
		return nil, errors.New("terrain requires a voxel catalog")
	}
	if biomes == nil {
		return nil, errors.New("terrain requires a biome selector")
	}
	if pool == nil {
		return nil, errors.New("terrain requires a render pool")
	}
	if err := validateParams(opts.Params); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Terrain{
		opts:    opts,
		logger:  logger,
		catalog: catalog,
		biomes:  biomes,
		pool:    pool,
		workers: pond.NewPool(opts.Workers),
		ctx:     ctx,
		cancel:  cancel,
		params:  opts.Params,
		store:   world.NewStore(opts.Params.Dimensions()),
		renders: make(map[world.Pos]render.Handle),
		queue:   newIntegrationQueue(opts.IntegrationBuffer),
	}, nil
}

func validateParams(p Params) error {
	if p.ChunkSize <= 0 || p.ChunkHeight <= 0 {
		return fmt.Errorf("invalid chunk dimensions %dx%d", p.ChunkSize, p.ChunkHeight)
	}
	if p.DrawRange <= 0 {
		return fmt.Errorf("invalid draw range %d", p.DrawRange)
	}
	return nil
}

// Close cancels any running cycle and stops the worker pool.
func (t *Terrain) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		t.workers.StopAndWait()
	})
}

func (t *Terrain) Params() Params {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.params
}

func (t *Terrain) Store() *world.Store {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store
}

func (t *Terrain) Catalog() *voxel.Catalog {
	return t.catalog
}

// Rendered reports whether pos has a realized render chunk.
func (t *Terrain) Rendered(pos world.Pos) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.renders[pos]
	return ok
}

func (t *Terrain) RenderedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.renders)
}

// Pending returns the number of meshes waiting for integration.
func (t *Terrain) Pending() int {
	return t.queue.Len()
}

func (t *Terrain) Cycles() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cycles
}

// OnWorldCreated registers fn to run once, after the first cycle's meshes
// are integrated.
func (t *Terrain) OnWorldCreated(fn func()) {
	t.mu.Lock()
	t.onWorldCreated = append(t.onWorldCreated, fn)
	t.mu.Unlock()
}

// OnNewChunksGenerated registers fn to run after every later cycle.
func (t *Terrain) OnNewChunksGenerated(fn func()) {
	t.mu.Lock()
	t.onNewChunks = append(t.onNewChunks, fn)
	t.mu.Unlock()
}

// Load replaces the data store with the chunks of snap and adopts its world
// parameters. It must run before the first cycle.
func (t *Terrain) Load(snap *persistence.Snapshot) error {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	params := Params{
		ChunkSize:   snap.Params.ChunkSize,
		ChunkHeight: snap.Params.ChunkHeight,
		DrawRange:   snap.Params.DrawRange,
		SeedOffset:  snap.Params.SeedOffset,
	}
	if err := validateParams(params); err != nil {
		return fmt.Errorf("load snapshot %s: %w", snap.ID, err)
	}
	chunks, err := snap.RestoreChunks()
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", snap.ID, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cycles > 0 {
		return errors.New("load snapshot: terrain already streaming")
	}
	store := world.NewStore(params.Dimensions())
	for _, c := range chunks {
		store.Put(c)
	}
	t.params = params
	t.store = store
	t.logger.Printf("snapshot %s loaded: %d chunks", snap.ID, len(chunks))
	return nil
}

// Snapshot captures the data store for persistence.
func (t *Terrain) Snapshot(viewpoint world.Pos, opts persistence.Options) *persistence.Snapshot {
	return persistence.Capture(t.Store(), t.Params().snapshotParams(), viewpoint, opts)
}

// Plan computes the visibility diff for viewpoint against the loaded state.
// Positions already waiting for integration count as rendered.
func (t *Terrain) Plan(viewpoint world.Pos) Plan {
	t.mu.Lock()
	params := t.params
	store := t.store
	renderKeys := make([]world.Pos, 0, len(t.renders))
	for p := range t.renders {
		renderKeys = append(renderKeys, p)
	}
	t.mu.Unlock()

	data := make(map[world.Pos]bool, store.Len())
	for _, c := range store.Chunks() {
		data[c.Origin] = c.Modified()
	}
	rendered := func(p world.Pos) bool {
		return t.Rendered(p) || t.queue.Contains(p)
	}
	return buildPlan(params.Dimensions(), viewpoint, params.DrawRange, rendered, data, renderKeys)
}

// Cycle runs one streaming cycle for viewpoint: evict, generate, place
// leaves, mesh and queue the meshes for integration. A cancelled cycle
// returns ErrCycleCancelled and merges nothing.
func (t *Terrain) Cycle(ctx context.Context, viewpoint world.Pos) error {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()

	if err := t.ctx.Err(); err != nil {
		return t.abandon(viewpoint, err)
	}

	started := time.Now()
	params := t.Params()
	store := t.Store()

	field := t.biomes.Refresh(viewpoint, params.DrawRange, params.ChunkSize, params.SeedOffset)
	t.mu.Lock()
	t.field = field
	t.mu.Unlock()

	plan := t.Plan(viewpoint)
	t.evict(store, plan)

	generated, err := t.generate(ctx, store, field, plan.DataCreate)
	if err != nil {
		return t.abandon(viewpoint, err)
	}
	for _, c := range generated {
		store.Put(c)
	}
	leaves := placeLeaves(store)

	targets := make([]world.Pos, 0, len(plan.RenderCreate))
	for _, p := range plan.RenderCreate {
		if store.Has(p) {
			targets = append(targets, p)
		}
	}
	meshes, err := t.extract(ctx, store, targets)
	if err != nil {
		return t.abandon(viewpoint, err)
	}
	items := make([]integration, len(targets))
	for i, p := range targets {
		items[i] = integration{Pos: p, Mesh: meshes[i]}
	}
	t.queue.Enqueue(items...)

	t.logger.Printf("terrain cycle at %v: %d chunks generated, %d leaves placed, %d meshes queued, %d/%d evicted in %s",
		viewpoint, len(generated), leaves, len(items), len(plan.RenderEvict), len(plan.DataEvict), time.Since(started).Round(time.Millisecond))
	t.finishCycle()
	return nil
}

func (t *Terrain) abandon(viewpoint world.Pos, err error) error {
	t.logger.Printf("terrain cycle at %v cancelled: %v", viewpoint, err)
	return fmt.Errorf("%w: %w", ErrCycleCancelled, err)
}

func (t *Terrain) evict(store *world.Store, plan Plan) {
	t.mu.Lock()
	for _, p := range plan.RenderEvict {
		if h, ok := t.renders[p]; ok {
			t.pool.Release(h)
			delete(t.renders, p)
		}
	}
	t.mu.Unlock()

	for _, p := range plan.DataEvict {
		store.Delete(p)
	}

	needed := toSet(RequiredPositions(store.Dimensions(), plan.Viewpoint, t.Params().DrawRange))
	dropped := t.queue.Retain(func(p world.Pos) bool {
		_, ok := needed[p]
		return ok
	})
	if dropped > 0 {
		t.logger.Printf("dropped %d stale meshes awaiting integration", dropped)
	}
}

func (t *Terrain) generate(ctx context.Context, store *world.Store, field *biome.Field, positions []world.Pos) ([]*world.Chunk, error) {
	if len(positions) == 0 {
		return nil, ctx.Err()
	}
	dim := store.Dimensions()
	out := make([]*world.Chunk, len(positions))
	tracker := newProgress(t.logger, "generation", len(positions))

	group := t.workers.NewGroupContext(ctx)
	for i, p := range positions {
		group.SubmitErr(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c := world.NewChunk(p, dim)
			field.GenerateChunk(store, c)
			out[i] = c
			tracker.step()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Terrain) extract(ctx context.Context, store *world.Store, positions []world.Pos) ([]*mesh.Mesh, error) {
	if len(positions) == 0 {
		return nil, ctx.Err()
	}
	out := make([]*mesh.Mesh, len(positions))
	tracker := newProgress(t.logger, "meshing", len(positions))

	group := t.workers.NewGroupContext(ctx)
	for i, p := range positions {
		group.SubmitErr(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, ok := store.Get(p)
			if !ok {
				return nil
			}
			out[i] = mesh.Extract(store, c, t.catalog)
			tracker.step()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// placeLeaves writes queued tree leaves of every loaded chunk. Leaves that
// land in a chunk that is not loaded yet stay queued.
func placeLeaves(store *world.Store) int {
	placed := 0
	for _, c := range store.Chunks() {
		var pending []world.Pos
		for _, leaf := range c.TakePendingLeaves() {
			if store.SetChunkVoxel(c, leaf, voxel.TreeLeaves) {
				placed++
				continue
			}
			pending = append(pending, leaf)
		}
		if len(pending) > 0 {
			c.QueueLeaves(pending...)
		}
	}
	return placed
}

func (t *Terrain) finishCycle() {
	t.mu.Lock()
	t.cycles++
	if !t.created {
		t.awaitingCreated = true
		t.mu.Unlock()
		if t.queue.Len() == 0 {
			t.fireWorldCreated()
		}
		return
	}
	handlers := append([]func(){}, t.onNewChunks...)
	t.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (t *Terrain) fireWorldCreated() {
	t.mu.Lock()
	if t.created || !t.awaitingCreated {
		t.mu.Unlock()
		return
	}
	t.created = true
	t.awaitingCreated = false
	handlers := append([]func(){}, t.onWorldCreated...)
	t.mu.Unlock()

	t.logger.Printf("terrain created: %d chunks rendered", t.RenderedCount())
	for _, fn := range handlers {
		fn()
	}
}

// Tick integrates at most one queued mesh and reports whether it did.
func (t *Terrain) Tick() bool {
	item, ok := t.queue.Pop()
	if ok && item.Mesh != nil {
		t.mu.Lock()
		h, exists := t.renders[item.Pos]
		if !exists {
			h = t.pool.Acquire(item.Pos)
			t.renders[item.Pos] = h
		}
		t.mu.Unlock()
		t.pool.Upload(h, item.Mesh)
	}
	if t.queue.Len() == 0 {
		t.fireWorldCreated()
	}
	return ok
}

// Pause runs fn while no streaming cycle is in flight. fn must not call
// Cycle or Load.
func (t *Terrain) Pause(fn func()) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()
	fn()
}

// Remesh re-extracts and uploads the mesh of a rendered chunk.
func (t *Terrain) Remesh(pos world.Pos) bool {
	t.mu.Lock()
	h, ok := t.renders[pos]
	store := t.store
	t.mu.Unlock()
	if !ok {
		return false
	}
	c, ok := store.Get(pos)
	if !ok {
		return false
	}
	t.pool.Upload(h, mesh.Extract(store, c, t.catalog))
	return true
}

// progress logs phase completion in ten percent steps.
type progress struct {
	logger *log.Logger
	phase  string
	total  int64
	done   atomic.Int64
	next   atomic.Int64
}

func newProgress(logger *log.Logger, phase string, total int) *progress {
	p := &progress{logger: logger, phase: phase, total: int64(total)}
	p.next.Store(10)
	return p
}

func (p *progress) step() {
	done := p.done.Add(1)
	percent := done * 100 / p.total
	for {
		next := p.next.Load()
		if percent < next {
			return
		}
		if p.next.CompareAndSwap(next, (percent/10+1)*10) {
			p.logger.Printf("%s progress: %d%%", p.phase, percent)
			return
		}
	}
}
