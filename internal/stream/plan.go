package stream

import (
	"sort"

	"voxelterrain/internal/world"
)

// Plan is the difference between what a viewpoint needs and what is loaded.
// Create lists are ordered nearest first.
type Plan struct {
	Viewpoint    world.Pos
	RenderCreate []world.Pos
	DataCreate   []world.Pos
	RenderEvict  []world.Pos
	DataEvict    []world.Pos
}

// RequiredPositions returns the chunk origins needed within radius chunks of
// viewpoint. Columns within one chunk of the viewpoint also get the chunks
// below y=0 down to two chunk heights under the viewpoint.
func RequiredPositions(dim world.Dimensions, viewpoint world.Pos, radius int) []world.Pos {
	size, height := dim.Size, dim.Height
	seen := make(map[world.Pos]struct{})
	var out []world.Pos
	add := func(p world.Pos) {
		origin := dim.ChunkOrigin(p)
		if _, ok := seen[origin]; ok {
			return
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}

	for x := viewpoint.X - radius*size; x <= viewpoint.X+radius*size; x += size {
		for z := viewpoint.Z - radius*size; z <= viewpoint.Z+radius*size; z += size {
			add(world.Pos{X: x, Z: z})
			if x < viewpoint.X-size || x > viewpoint.X+size ||
				z < viewpoint.Z-size || z > viewpoint.Z+size {
				continue
			}
			for y := -height; y >= viewpoint.Y-2*height; y -= height {
				add(world.Pos{X: x, Y: y, Z: z})
			}
		}
	}
	return out
}

// buildPlan diffs the required positions against the loaded state.
func buildPlan(dim world.Dimensions, viewpoint world.Pos, drawRange int, rendered func(world.Pos) bool, data map[world.Pos]bool, renderKeys []world.Pos) Plan {
	renderNeeded := RequiredPositions(dim, viewpoint, drawRange)
	dataNeeded := RequiredPositions(dim, viewpoint, drawRange+1)

	plan := Plan{Viewpoint: viewpoint}
	for _, p := range renderNeeded {
		if !rendered(p) {
			plan.RenderCreate = append(plan.RenderCreate, p)
		}
	}
	for _, p := range dataNeeded {
		if _, ok := data[p]; !ok {
			plan.DataCreate = append(plan.DataCreate, p)
		}
	}

	renderSet := toSet(renderNeeded)
	for _, p := range renderKeys {
		if _, ok := renderSet[p]; !ok {
			plan.RenderEvict = append(plan.RenderEvict, p)
		}
	}
	dataSet := toSet(dataNeeded)
	for p, modified := range data {
		if _, ok := dataSet[p]; !ok && !modified {
			plan.DataEvict = append(plan.DataEvict, p)
		}
	}

	sortByDistance(plan.RenderCreate, viewpoint)
	sortByDistance(plan.DataCreate, viewpoint)
	world.SortPositions(plan.RenderEvict)
	world.SortPositions(plan.DataEvict)
	return plan
}

func toSet(ps []world.Pos) map[world.Pos]struct{} {
	set := make(map[world.Pos]struct{}, len(ps))
	for _, p := range ps {
		set[p] = struct{}{}
	}
	return set
}

func sortByDistance(ps []world.Pos, from world.Pos) {
	world.SortPositions(ps)
	sort.SliceStable(ps, func(i, j int) bool {
		return distanceSq(ps[i], from) < distanceSq(ps[j], from)
	})
}

func distanceSq(a, b world.Pos) int {
	d := a.Sub(b)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}
