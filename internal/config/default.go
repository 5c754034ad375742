package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"voxelterrain/internal/biome"
	"voxelterrain/internal/layers"
	"voxelterrain/internal/noise"
	"voxelterrain/internal/trees"
	"voxelterrain/internal/voxel"
)

const (
	defaultWaterLevel  = 20
	defaultTreeLine    = 40
	defaultSaveDir     = "save"
	defaultAutosave    = 5 * time.Minute
	defaultBufferDepth = 64
)

func Default() *Config {
	return &Config{
		World: WorldConfig{
			ChunkSize:   16,
			ChunkHeight: 100,
			DrawRange:   8,
			SeedOffset:  noise.Vec2i{X: 0, Z: 0},
			NewGame:     false,
		},
		Stream: StreamConfig{
			Workers:           0,
			PollInterval:      Duration(time.Second),
			TickInterval:      Duration(16 * time.Millisecond),
			IntegrationBuffer: defaultBufferDepth,
		},
		Atlas:  voxel.DefaultAtlas(),
		Voxels: voxel.DefaultProperties(),
		Biomes: BiomeConfig{
			Temperature: noise.Settings{
				Zoom:                   0.005,
				Octaves:                3,
				Offset:                 noise.Vec2i{X: 7000, Z: 3000},
				Persistence:            0.5,
				RedistributionModifier: 1,
				Exponent:               1,
			},
			CenterWarp: defaultWarp(),
			Table:      DefaultBiomes(),
		},
		Persistence: PersistenceConfig{
			Dir:      defaultSaveDir,
			Autosave: Duration(defaultAutosave),
		},
	}
}

// DefaultBiomes splits the temperature range into snow, plains and desert.
func DefaultBiomes() []BiomeEntry {
	return []BiomeEntry{
		{Start: 0, End: 0.35, Biome: defaultBiome("snow", voxel.Snow, voxel.Dirt, voxel.Ice, false)},
		{Start: 0.35, End: 0.7, Biome: defaultBiome("plains", voxel.Grass, voxel.Dirt, voxel.Water, true)},
		{Start: 0.7, End: 1, Biome: defaultBiome("desert", voxel.Sand, voxel.Sand, voxel.Water, false)},
	}
}

func defaultBiome(name string, surface, underground, water voxel.Type, forest bool) biome.Generator {
	g := biome.Generator{
		Name: name,
		Surface: noise.Settings{
			Zoom:                   0.01,
			Octaves:                5,
			Offset:                 noise.Vec2i{X: 1000, Z: 1000},
			Persistence:            0.5,
			RedistributionModifier: 1,
			Exponent:               2,
		},
		UseWarp: true,
		Warp:    defaultWarp(),
		Layers: layers.Chain{
			Column: []layers.Handler{
				{Kind: layers.Water, Voxel: water, WaterLevel: defaultWaterLevel},
				{Kind: layers.Surface, Voxel: surface},
				{Kind: layers.Underground, Voxel: underground},
				{Kind: layers.Air},
			},
			Additional: []layers.Handler{
				{
					Kind:           layers.Stone,
					StoneThreshold: layers.DefaultStoneThreshold,
					StoneNoise: noise.Settings{
						Zoom:                   0.02,
						Octaves:                1,
						Offset:                 noise.Vec2i{X: 500, Z: 500},
						Persistence:            0.5,
						RedistributionModifier: 1,
						Exponent:               1,
					},
					Warp: defaultWarp(),
				},
			},
		},
	}
	if forest {
		g.Layers.Additional = append(g.Layers.Additional, layers.Handler{
			Kind:        layers.Tree,
			HeightLimit: defaultTreeLine,
		})
		g.Trees = &trees.Generator{
			Noise: noise.Settings{
				Zoom:                   0.8,
				Octaves:                1,
				Offset:                 noise.Vec2i{X: 2000, Z: 2000},
				Persistence:            0.5,
				RedistributionModifier: 1,
				Exponent:               1,
			},
			Warp: defaultWarp(),
		}
	}
	return g
}

func defaultWarp() noise.Warp {
	channel := func(offset int) noise.Settings {
		return noise.Settings{
			Zoom:                   0.1,
			Octaves:                3,
			Offset:                 noise.Vec2i{X: offset, Z: offset},
			Persistence:            0.5,
			RedistributionModifier: 1,
			Exponent:               1,
		}
	}
	return noise.Warp{
		X:          channel(50),
		Y:          channel(100),
		AmplitudeX: noise.DefaultWarpAmplitude,
		AmplitudeY: noise.DefaultWarpAmplitude,
	}
}

// WriteDefault writes the default configuration to the provided path as YAML.
func WriteDefault(path string) error {
	cfg := Default()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}
