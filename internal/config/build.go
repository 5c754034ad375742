package config

import (
	"fmt"
	"log"

	"voxelterrain/internal/biome"
	"voxelterrain/internal/edit"
	"voxelterrain/internal/noise"
	"voxelterrain/internal/persistence"
	"voxelterrain/internal/stream"
	"voxelterrain/internal/voxel"
)

// Catalog builds the voxel catalog described by the voxels and atlas
// sections.
func (c *Config) Catalog() (*voxel.Catalog, error) {
	return voxel.NewCatalog(c.Voxels, c.Atlas)
}

// Selector builds the biome selector. A nil src uses the shared noise source.
func (c *Config) Selector(src *noise.Source) (*biome.Selector, error) {
	table := make([]biome.Entry, 0, len(c.Biomes.Table))
	for i := range c.Biomes.Table {
		e := c.Biomes.Table[i]
		g := e.Biome
		table = append(table, biome.Entry{Start: e.Start, End: e.End, Generator: &g})
	}
	s, err := biome.NewSelector(table, c.Biomes.Temperature, c.Biomes.CenterWarp, src)
	if err != nil {
		return nil, fmt.Errorf("build biome selector: %w", err)
	}
	return s, nil
}

func (c *Config) StreamParams() stream.Params {
	return stream.Params{
		ChunkSize:   c.World.ChunkSize,
		ChunkHeight: c.World.ChunkHeight,
		DrawRange:   c.World.DrawRange,
		SeedOffset:  c.World.SeedOffset,
	}
}

func (c *Config) StreamOptions(logger *log.Logger) stream.Options {
	return stream.Options{
		Params:            c.StreamParams(),
		Workers:           c.Stream.Workers,
		PollInterval:      c.Stream.PollInterval.Duration(),
		TickInterval:      c.Stream.TickInterval.Duration(),
		IntegrationBuffer: c.Stream.IntegrationBuffer,
		Logger:            logger,
	}
}

func (c *Config) EditOptions() edit.Options {
	return edit.Options{Breakable: append([]voxel.Type(nil), c.Edit.Breakable...)}
}

func (c *Config) SnapshotOptions() persistence.Options {
	return persistence.Options{ModifiedOnly: c.Persistence.ModifiedOnly}
}
