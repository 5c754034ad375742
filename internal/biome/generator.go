package biome

import (
	"voxelterrain/internal/layers"
	"voxelterrain/internal/noise"
	"voxelterrain/internal/trees"
)

// Generator describes one biome kind: how high its surface is and how its
// columns are filled.
type Generator struct {
	Name    string           `yaml:"name" json:"name"`
	Surface noise.Settings   `yaml:"surface" json:"surface"`
	UseWarp bool             `yaml:"useWarp" json:"useWarp"`
	Warp    noise.Warp       `yaml:"warp" json:"warp"`
	Layers  layers.Chain     `yaml:"layers" json:"layers"`
	Trees   *trees.Generator `yaml:"trees,omitempty" json:"trees,omitempty"`

	// FlatHeight, when positive, replaces the surface noise with a constant
	// height.
	FlatHeight int `yaml:"flatHeight,omitempty" json:"flatHeight,omitempty"`
}

// SurfaceHeight returns the world height of the surface at (x, z) in
// [0, chunkHeight).
func (g *Generator) SurfaceHeight(src *noise.Source, x, z, chunkHeight int, seed noise.Vec2i) int {
	if g.FlatHeight > 0 {
		return g.FlatHeight
	}
	settings := g.Surface.WithWorldOffset(seed)
	var value float64
	if g.UseWarp {
		value = g.Warp.Sample(src, x, z, settings)
	} else {
		value = noise.OctavePerlin(src, float64(x), float64(z), settings)
	}
	value = noise.Redistribute(value, settings)
	return noise.RemapToInt(value, 0, float64(chunkHeight))
}

// Entry maps a temperature range [Start, End) to a biome.
type Entry struct {
	Start     float64
	End       float64
	Generator *Generator
}

func (e Entry) contains(temperature float64) bool {
	return temperature >= e.Start && temperature < e.End
}
