package edit

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

// hitTolerance decides when a hit coordinate lies on a voxel face.
const hitTolerance = 1e-10

// DefaultBreakable lists the types that take several hits to break.
var DefaultBreakable = []voxel.Type{
	voxel.Grass,
	voxel.Dirt,
	voxel.Stone,
	voxel.TreeTrunk,
	voxel.TreeLeaves,
	voxel.Water,
	voxel.Sand,
}

// waterSources are the neighbours checked for water when a voxel breaks.
var waterSources = [...]world.Pos{
	{X: 1},
	{Y: 1},
	{Z: 1},
	{X: -1},
	{Z: -1},
}

// Remesher rebuilds the mesh of a rendered chunk.
type Remesher interface {
	Remesh(origin world.Pos) bool
}

type Options struct {
	// Breakable overrides DefaultBreakable when non-empty.
	Breakable []voxel.Type
}

// Editor applies break and place requests to a data store. Requests are
// serialized; the durability map is owned by the editor.
type Editor struct {
	store    *world.Store
	catalog  *voxel.Catalog
	remesher Remesher

	mu         sync.Mutex
	breakable  map[voxel.Type]bool
	durability map[world.Pos]int
}

func NewEditor(store *world.Store, catalog *voxel.Catalog, remesher Remesher, opts Options) *Editor {
	types := opts.Breakable
	if len(types) == 0 {
		types = DefaultBreakable
	}
	breakable := make(map[voxel.Type]bool, len(types))
	for _, t := range types {
		breakable[t] = true
	}
	return &Editor{
		store:      store,
		catalog:    catalog,
		remesher:   remesher,
		breakable:  breakable,
		durability: make(map[world.Pos]int),
	}
}

// ResolveHit converts a surface hit point into the voxel it belongs to. A
// coordinate sitting on a face is pushed half a voxel against the normal.
func ResolveHit(point, normal mgl32.Vec3) world.Pos {
	var out [3]int
	for i := 0; i < 3; i++ {
		p := float64(point[i])
		if math.Abs(math.Abs(math.Mod(p, 1))-0.5) < hitTolerance {
			p -= float64(normal[i]) / 2
		}
		out[i] = int(math.RoundToEven(p))
	}
	return world.Pos{X: out[0], Y: out[1], Z: out[2]}
}

// PlaceTarget returns the empty cell next to the hit voxel along normal.
func PlaceTarget(point, normal mgl32.Vec3) world.Pos {
	hit := ResolveHit(point, normal)
	return world.Pos{
		X: int(math.RoundToEven(float64(hit.X) + float64(normal.X()))),
		Y: int(math.RoundToEven(float64(hit.Y) + float64(normal.Y()))),
		Z: int(math.RoundToEven(float64(hit.Z) + float64(normal.Z()))),
	}
}

// Break applies one break request at the voxel hit by a ray.
func (e *Editor) Break(point, normal mgl32.Vec3) (*Result, error) {
	return e.BreakAt(ResolveHit(point, normal))
}

// BreakAt applies one break request at pos. Breakable types lose one point
// of durability per request; everything else is replaced with air at once.
// Unloaded positions yield an empty result.
func (e *Editor) BreakAt(pos world.Pos) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := NewResult()
	c, ok := e.store.ChunkFor(pos)
	if !ok {
		return res, nil
	}
	local := c.Local(pos)
	current, _ := c.LocalVoxel(local.X, local.Y, local.Z)

	if e.breakable[current] {
		e.damage(c, pos, current, res)
	} else {
		e.overwrite(c, pos, current, voxel.Air, ReasonOverwrite, res)
	}
	e.finish(c, pos, res)
	return res, nil
}

// Place writes t into the cell in front of the hit face.
func (e *Editor) Place(point, normal mgl32.Vec3, t voxel.Type) (*Result, error) {
	return e.PlaceAt(PlaceTarget(point, normal), t)
}

// PlaceAt overwrites pos with t. Placing consumes no durability.
func (e *Editor) PlaceAt(pos world.Pos, t voxel.Type) (*Result, error) {
	if !e.catalog.Has(t) || !e.catalog.Get(t).Placeable {
		return nil, fmt.Errorf("place %v at %v: voxel type is not placeable", t, pos)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := NewResult()
	c, ok := e.store.ChunkFor(pos)
	if !ok {
		return res, nil
	}
	local := c.Local(pos)
	current, _ := c.LocalVoxel(local.X, local.Y, local.Z)
	delete(e.durability, pos)
	e.overwrite(c, pos, current, t, ReasonPlace, res)
	e.finish(c, pos, res)
	return res, nil
}

// Durability returns the remaining hits recorded for pos.
func (e *Editor) Durability(pos world.Pos) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.durability[pos]
	return d, ok
}

func (e *Editor) damage(c *world.Chunk, pos world.Pos, current voxel.Type, res *Result) {
	remaining, ok := e.durability[pos]
	if !ok {
		remaining = e.catalog.Get(current).Durability
	}
	remaining--
	if remaining > 0 {
		e.durability[pos] = remaining
		res.AddChange(Change{Pos: pos, Before: current, After: current, Reason: ReasonDamage, Remaining: remaining})
		return
	}

	delete(e.durability, pos)
	after, reason := voxel.Air, ReasonDestroy
	if e.nextToWater(c, c.Local(pos)) {
		after, reason = voxel.Water, ReasonFlood
	}
	e.overwrite(c, pos, current, after, reason, res)
}

func (e *Editor) nextToWater(c *world.Chunk, local world.Pos) bool {
	for _, offset := range waterSources {
		if e.store.ChunkVoxel(c, local.Add(offset)) == voxel.Water {
			return true
		}
	}
	return false
}

func (e *Editor) overwrite(c *world.Chunk, pos world.Pos, before, after voxel.Type, reason Reason, res *Result) {
	if before == after {
		return
	}
	if !e.store.SetChunkVoxel(c, c.Local(pos), after) {
		return
	}
	res.AddChange(Change{Pos: pos, Before: before, After: after, Reason: reason})
}

// finish marks the edited chunk modified and remeshes it together with any
// neighbour sharing the edited boundary face. It runs for every edit that
// reaches a loaded chunk, including ones that changed no voxel.
func (e *Editor) finish(c *world.Chunk, pos world.Pos, res *Result) {
	c.MarkModified()
	res.AddChunk(c.Origin)
	if world.IsOnEdge(c, pos) {
		for _, n := range e.store.EdgeNeighbours(c, pos) {
			res.AddChunk(n.Origin)
		}
	}
	if e.remesher == nil {
		return
	}
	for _, origin := range res.DirtyChunks() {
		e.remesher.Remesh(origin)
	}
}
