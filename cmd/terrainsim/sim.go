package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/config"
	"voxelterrain/internal/edit"
	"voxelterrain/internal/persistence"
	"voxelterrain/internal/preview"
	"voxelterrain/internal/render"
	"voxelterrain/internal/stream"
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

const shutdownSaveTimeout = 5 * time.Second

type simOptions struct {
	SaveDir      string
	NewGame      bool
	Steps        int
	StepDistance int
	PreviewDir   string
}

// simulation drives a terrain with a viewpoint walking along +X, applies a
// few scripted edits once each cycle settles and saves the world.
type simulation struct {
	cfg     *config.Config
	opts    simOptions
	logger  *log.Logger
	catalog *voxel.Catalog
	pool    *render.MemoryPool
	terrain *stream.Terrain
	saves   *persistence.DiskStore
	editor  *edit.Editor
	walker  *walker

	// settled is signalled when the world is created and after every later
	// cycle.
	settled chan struct{}
}

func newSimulation(ctx context.Context, cfg *config.Config, opts simOptions, logger *log.Logger) (*simulation, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("build voxel catalog: %w", err)
	}
	selector, err := cfg.Selector(nil)
	if err != nil {
		return nil, err
	}
	pool := render.NewMemoryPool()
	terrain, err := stream.New(cfg.StreamOptions(logger), catalog, selector, pool)
	if err != nil {
		return nil, fmt.Errorf("create terrain: %w", err)
	}

	dir := opts.SaveDir
	if dir == "" {
		dir = cfg.Persistence.Dir
	}
	saves, err := persistence.OpenDiskStore(dir, logger)
	if err != nil {
		terrain.Close()
		return nil, fmt.Errorf("open save log: %w", err)
	}

	s := &simulation{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		catalog: catalog,
		pool:    pool,
		terrain: terrain,
		saves:   saves,
		settled: make(chan struct{}, 1),
	}

	start, err := s.restore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	// The editor binds to the store the terrain streams into, which restore
	// may have replaced.
	s.editor = edit.NewEditor(terrain.Store(), catalog, terrain, cfg.EditOptions())

	size := terrain.Params().ChunkSize
	step := opts.StepDistance
	if step <= 0 {
		step = 2 * size
	}
	if 2*step <= 3*size {
		logger.Printf("step distance %d may stay inside the streamed chunk and never trigger a cycle", step)
	}
	s.walker = newWalker(start, step)

	terrain.OnWorldCreated(s.notifySettled)
	terrain.OnNewChunksGenerated(s.notifySettled)
	return s, nil
}

// restore loads the saved world unless a new game was requested and returns
// the viewpoint to start from.
func (s *simulation) restore(ctx context.Context) (world.Pos, error) {
	if s.opts.NewGame || s.cfg.World.NewGame {
		s.logger.Printf("starting a new game")
		return world.Pos{}, nil
	}
	snap, err := s.saves.Load(ctx)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		s.logger.Printf("no saved world in %s, starting a new game", s.saves.Path())
		return world.Pos{}, nil
	}
	if err != nil {
		return world.Pos{}, fmt.Errorf("load saved world: %w", err)
	}
	if err := s.terrain.Load(snap); err != nil {
		return world.Pos{}, err
	}
	return snap.Viewpoint, nil
}

func (s *simulation) notifySettled() {
	select {
	case s.settled <- struct{}{}:
	default:
	}
}

func (s *simulation) Close() {
	s.terrain.Close()
	if err := s.saves.Close(); err != nil {
		s.logger.Printf("close save log: %v", err)
	}
}

// Run streams until ctx is done or the configured number of steps has been
// walked, then saves the world.
func (s *simulation) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- s.terrain.Run(ctx, stream.ViewpointFunc(s.walker.Viewpoint))
	}()

	var autosave <-chan time.Time
	if d := s.cfg.Persistence.Autosave.Duration(); d > 0 {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		autosave = ticker.C
	}

	steps := 0
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(streamErr)
		case err := <-streamErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return s.saveNow()
		case <-autosave:
			if err := s.save(ctx); err != nil {
				s.logger.Printf("autosave failed: %v", err)
			}
		case <-s.settled:
			s.terrain.Pause(func() { s.scriptedEdits(s.walker.Viewpoint()) })
			if s.opts.Steps > 0 && steps >= s.opts.Steps {
				s.logger.Printf("walked %d steps, stopping", steps)
				cancel()
				return s.shutdown(streamErr)
			}
			steps++
			s.logger.Printf("viewpoint moved to %v", s.walker.Step())
		}
	}
}

func (s *simulation) shutdown(streamErr <-chan error) error {
	if err := <-streamErr; err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Printf("terrain stopped: %v", err)
	}
	if s.opts.PreviewDir != "" {
		if err := s.writePreviews(s.opts.PreviewDir); err != nil {
			s.logger.Printf("write previews: %v", err)
		}
	}
	return s.saveNow()
}

// writePreviews renders every loaded chunk of the column under the viewpoint.
func (s *simulation) writePreviews(dir string) error {
	var err error
	s.terrain.Pause(func() {
		store := s.terrain.Store()
		column := store.Dimensions().ChunkOrigin(s.walker.Viewpoint())
		for _, c := range store.Chunks() {
			if c.Origin.X != column.X || c.Origin.Z != column.Z {
				continue
			}
			var path string
			if path, err = preview.Save(store, c, preview.DefaultPalette, dir); err != nil {
				return
			}
			s.logger.Printf("chunk %v preview written to %s", c.Origin, path)
		}
	})
	return err
}

func (s *simulation) saveNow() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
	defer cancel()
	return s.save(ctx)
}

func (s *simulation) save(ctx context.Context) error {
	var snap *persistence.Snapshot
	s.terrain.Pause(func() {
		snap = s.terrain.Snapshot(s.walker.Viewpoint(), s.cfg.SnapshotOptions())
	})
	if err := s.saves.Save(ctx, snap); err != nil {
		return fmt.Errorf("save world: %w", err)
	}
	return nil
}

// scriptedEdits digs out the surface voxel under the viewpoint and plants a
// trunk on the column next to it.
func (s *simulation) scriptedEdits(viewpoint world.Pos) {
	store := s.terrain.Store()
	height := s.terrain.Params().ChunkHeight

	if top, ok := surfaceAt(store, s.catalog, viewpoint.X, viewpoint.Z, height); ok {
		res := s.dig(top)
		s.logEdit("dig", top, res)
	}

	if top, ok := surfaceAt(store, s.catalog, viewpoint.X+1, viewpoint.Z, height); ok {
		point, normal := topFaceHit(top)
		res, err := s.editor.Place(point, normal, voxel.TreeTrunk)
		if err != nil {
			s.logger.Printf("place at %v: %v", top, err)
			return
		}
		s.logEdit("place", edit.PlaceTarget(point, normal), res)
	}
}

// dig hits pos from above until its voxel changes type.
func (s *simulation) dig(pos world.Pos) *edit.Result {
	total := edit.NewResult()
	point, normal := topFaceHit(pos)
	before := s.terrain.Store().Voxel(pos)
	for i := 0; i < s.catalog.Get(before).Durability; i++ {
		res, err := s.editor.Break(point, normal)
		if err != nil {
			s.logger.Printf("break at %v: %v", pos, err)
			break
		}
		total.Merge(res)
		if s.terrain.Store().Voxel(pos) != before {
			break
		}
	}
	return total
}

func (s *simulation) logEdit(action string, pos world.Pos, res *edit.Result) {
	if res.Empty() {
		s.logger.Printf("%s at %v: nothing changed", action, pos)
		return
	}
	for _, change := range res.Changes() {
		s.logger.Printf("%s at %v: %v -> %v (%s, %d left)", action, change.Pos, change.Before, change.After, change.Reason, change.Remaining)
	}
	s.logger.Printf("%s at %v: %d chunks remeshed, %d render uploads so far", action, pos, len(res.DirtyChunks()), s.pool.Uploads())
}

// surfaceAt returns the highest solid voxel of the column (x, z).
func surfaceAt(store *world.Store, catalog *voxel.Catalog, x, z, height int) (world.Pos, bool) {
	for y := height - 1; y >= 0; y-- {
		p := world.Pos{X: x, Y: y, Z: z}
		t := store.Voxel(p)
		if catalog.Has(t) && catalog.IsSolid(t) {
			return p, true
		}
	}
	return world.Pos{}, false
}

// topFaceHit is the ray hit on the upper face of the voxel at p.
func topFaceHit(p world.Pos) (mgl32.Vec3, mgl32.Vec3) {
	point := mgl32.Vec3{float32(p.X), float32(p.Y) + 0.5, float32(p.Z)}
	return point, mgl32.Vec3{0, 1, 0}
}

// walker is a viewpoint advancing a fixed distance along +X per step.
type walker struct {
	mu       sync.Mutex
	position world.Pos
	step     int
}

func newWalker(start world.Pos, step int) *walker {
	return &walker{position: start, step: step}
}

func (w *walker) Viewpoint() world.Pos {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.position
}

func (w *walker) Step() world.Pos {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.position.X += w.step
	return w.position
}
