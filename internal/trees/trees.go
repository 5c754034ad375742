package trees

import (
	"voxelterrain/internal/noise"
	"voxelterrain/internal/world"
)

// Generator places trees at local maxima of a warped noise field.
type Generator struct {
	Noise noise.Settings `yaml:"noise" json:"noise"`
	Warp  noise.Warp     `yaml:"warp" json:"warp"`
}

// Field samples the tree noise over the horizontal footprint of a chunk,
// indexed [x][z].
func (g *Generator) Field(src *noise.Source, origin world.Pos, size int, seed noise.Vec2i) [][]float64 {
	settings := g.Noise.WithWorldOffset(seed)
	field := make([][]float64, size)
	for x := 0; x < size; x++ {
		field[x] = make([]float64, size)
		for z := 0; z < size; z++ {
			field[x][z] = g.Warp.Sample(src, origin.X+x, origin.Z+z, settings)
		}
	}
	return field
}

// Positions returns the world columns of every tree inside the chunk.
func (g *Generator) Positions(src *noise.Source, origin world.Pos, size int, seed noise.Vec2i) []world.Column {
	field := g.Field(src, origin, size, seed)
	maxima := LocalMaxima(field)
	out := make([]world.Column, len(maxima))
	for i, m := range maxima {
		out[i] = world.Column{X: origin.X + m.X, Z: origin.Z + m.Z}
	}
	return out
}

// LocalMaxima returns the cells whose value is strictly greater than every
// in-bounds neighbour among the eight compass directions. Ties exclude.
func LocalMaxima(field [][]float64) []world.Column {
	var out []world.Column
	for x := range field {
		for z := range field[x] {
			if isLocalMax(field, x, z) {
				out = append(out, world.Column{X: x, Z: z})
			}
		}
	}
	return out
}

func isLocalMax(field [][]float64, x, z int) bool {
	value := field[x][z]
	for _, d := range world.Directions2D {
		nx, nz := x+d.X, z+d.Z
		if nx < 0 || nx >= len(field) || nz < 0 || nz >= len(field[nx]) {
			continue
		}
		if !(field[nx][nz] < value) {
			return false
		}
	}
	return true
}
