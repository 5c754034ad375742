package biome

import (
	"errors"
	"math"
	"sort"

	"voxelterrain/internal/layers"
	"voxelterrain/internal/noise"
	"voxelterrain/internal/world"
)

const candidateCells = 4

// Selector chooses biomes from temperature noise sampled at cells arranged
// around the viewpoint.
type Selector struct {
	Table       []Entry
	Temperature noise.Settings
	CenterWarp  noise.Warp
	Source      *noise.Source
}

func NewSelector(table []Entry, temperature noise.Settings, centerWarp noise.Warp, src *noise.Source) (*Selector, error) {
	if len(table) == 0 {
		return nil, errors.New("biome table cannot be empty")
	}
	for _, e := range table {
		if e.Generator == nil {
			return nil, errors.New("biome table entry without generator")
		}
	}
	if src == nil {
		src = noise.Default()
	}
	return &Selector{
		Table:       table,
		Temperature: temperature,
		CenterWarp:  centerWarp,
		Source:      src,
	}, nil
}

// Lookup returns the generator whose range contains temperature, falling
// back to the first table entry.
func (s *Selector) Lookup(temperature float64) *Generator {
	for _, e := range s.Table {
		if e.contains(temperature) {
			return e.Generator
		}
	}
	return s.Table[0].Generator
}

// Centers returns the biome cell centres around viewpoint: the
// viewpoint-rounded origin plus each compass direction at one and two cell
// lengths, deduplicated and ordered.
func Centers(viewpoint world.Pos, drawRange, chunkSize int) []world.Column {
	length := drawRange * chunkSize
	if length <= 0 {
		return []world.Column{{}}
	}
	origin := world.Column{
		X: int(math.RoundToEven(float64(viewpoint.X)/float64(length))) * length,
		Z: int(math.RoundToEven(float64(viewpoint.Z)/float64(length))) * length,
	}

	set := map[world.Column]struct{}{origin: {}}
	for _, d := range world.Directions2D {
		for _, mx := range [2]int{1, 2} {
			for _, mz := range [2]int{1, 2} {
				set[world.Column{
					X: origin.X + d.X*mx*length,
					Z: origin.Z + d.Z*mz*length,
				}] = struct{}{}
			}
		}
	}

	out := make([]world.Column, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// Cell is a warped biome centre with its temperature sample.
type Cell struct {
	Center      world.Column
	Temperature float64
	Generator   *Generator
}

// Field is the immutable biome layout of one streaming cycle. It is safe to
// share between generation workers.
type Field struct {
	selector *Selector
	cells    []Cell
	seed     noise.Vec2i
}

// Refresh recomputes the biome cells for a new viewpoint.
func (s *Selector) Refresh(viewpoint world.Pos, drawRange, chunkSize int, seed noise.Vec2i) *Field {
	centers := Centers(viewpoint, drawRange, chunkSize)
	temperature := s.Temperature.WithWorldOffset(seed)
	cells := make([]Cell, len(centers))
	for i, c := range centers {
		dx, dz := s.CenterWarp.OffsetInt(s.Source, c.X, c.Z)
		c = world.Column{X: c.X + dx, Z: c.Z + dz}
		t := noise.OctavePerlin(s.Source, float64(c.X), float64(c.Z), temperature)
		cells[i] = Cell{Center: c, Temperature: t, Generator: s.Lookup(t)}
	}
	return &Field{selector: s, cells: cells, seed: seed}
}

func (f *Field) Cells() []Cell {
	return append([]Cell(nil), f.cells...)
}

func (f *Field) Seed() noise.Vec2i {
	return f.seed
}

// Selection is the outcome of choosing a biome for a column.
type Selection struct {
	Generator *Generator
	Height    int
	Weights   [2]float64
}

// BlendWeights returns the height weights of the two closest cells given
// their distances to the query and the distance between their centres.
// weight0 is d0 over the separation, so the closest centre contributes
// nothing at its own position. Equal distances yield 0.5 each.
func BlendWeights(d0, d1, separation float64) (float64, float64) {
	if d0 == d1 || separation == 0 {
		return 0.5, 0.5
	}
	w0 := d0 / separation
	return w0, 1 - w0
}

func (f *Field) separation(a, b candidate) float64 {
	ca, cb := f.cells[a.index].Center, f.cells[b.index].Center
	dx := float64(ca.X - cb.X)
	dz := float64(ca.Z - cb.Z)
	return math.Sqrt(dx*dx + dz*dz)
}

type candidate struct {
	index    int
	distance float64
}

func (f *Field) nearest(x, z int) []candidate {
	all := make([]candidate, len(f.cells))
	for i, c := range f.cells {
		dx := float64(c.Center.X - x)
		dz := float64(c.Center.Z - z)
		all[i] = candidate{index: i, distance: math.Sqrt(dx*dx + dz*dz)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].distance < all[j].distance })
	if len(all) > candidateCells {
		all = all[:candidateCells]
	}
	return all
}

// Select picks the dominant biome at (x, z) and blends the surface height of
// the two closest cells. With warp set, the query position is domain-warped
// first.
func (f *Field) Select(x, z, chunkHeight int, warp bool) Selection {
	src := f.selector.Source
	if warp {
		dx, dz := f.selector.CenterWarp.OffsetInt(src, x, z)
		x += dx
		z += dz
	}

	near := f.nearest(x, z)
	g0 := f.cells[near[0].index].Generator
	h0 := g0.SurfaceHeight(src, x, z, chunkHeight, f.seed)
	if len(near) < 2 {
		return Selection{Generator: g0, Height: h0, Weights: [2]float64{1, 0}}
	}

	g1 := f.cells[near[1].index].Generator
	h1 := h0
	if g1 != g0 {
		h1 = g1.SurfaceHeight(src, x, z, chunkHeight, f.seed)
	}
	w0, w1 := BlendWeights(near[0].distance, near[1].distance, f.separation(near[0], near[1]))
	return Selection{
		Generator: g0,
		Height:    int(math.RoundToEven(float64(h0)*w0 + float64(h1)*w1)),
		Weights:   [2]float64{w0, w1},
	}
}

// GenerateChunk fills c with terrain: tree positions from the biome at the
// chunk origin, then every column through its dominant biome's layers.
func (f *Field) GenerateChunk(store *world.Store, c *world.Chunk) {
	origin := c.Origin
	height := c.Dim.Height
	src := f.selector.Source

	base := f.Select(origin.X, origin.Z, height, false)
	if base.Generator.Trees != nil {
		c.SetTrees(base.Generator.Trees.Positions(src, origin, c.Dim.Size, f.seed))
	}

	for x := 0; x < c.Dim.Size; x++ {
		for z := 0; z < c.Dim.Size; z++ {
			sel := f.Select(origin.X+x, origin.Z+z, height, true)
			sel.Generator.Layers.Process(layers.Column{
				Store:   store,
				Chunk:   c,
				Source:  src,
				X:       x,
				Z:       z,
				Surface: sel.Height,
				Seed:    f.seed,
			})
		}
	}
}
