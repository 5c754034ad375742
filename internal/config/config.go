package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voxelterrain/internal/biome"
	"voxelterrain/internal/layers"
	"voxelterrain/internal/noise"
	"voxelterrain/internal/voxel"
)

// Duration wraps time.Duration so configuration files can use human readable
// strings such as "250ms" while still accepting integer nanoseconds.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: line %d: expected a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*d = 0
		return nil
	}
	var n int64
	if node.Tag == "!!int" {
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures everything needed to bootstrap a terrain engine.
type Config struct {
	World       WorldConfig        `yaml:"world" json:"world"`
	Stream      StreamConfig       `yaml:"stream" json:"stream"`
	Atlas       voxel.Atlas        `yaml:"atlas" json:"atlas"`
	Voxels      []voxel.Properties `yaml:"voxels" json:"voxels"`
	Biomes      BiomeConfig        `yaml:"biomes" json:"biomes"`
	Edit        EditConfig         `yaml:"edit" json:"edit"`
	Persistence PersistenceConfig  `yaml:"persistence" json:"persistence"`
}

type WorldConfig struct {
	ChunkSize   int         `yaml:"chunkSize" json:"chunkSize"`
	ChunkHeight int         `yaml:"chunkHeight" json:"chunkHeight"`
	DrawRange   int         `yaml:"drawRange" json:"drawRange"`
	SeedOffset  noise.Vec2i `yaml:"seedOffset" json:"seedOffset"`
	NewGame     bool        `yaml:"newGame" json:"newGame"`
}

type StreamConfig struct {
	Workers           int      `yaml:"workers" json:"workers"`                     // 0 means one per CPU
	PollInterval      Duration `yaml:"pollInterval" json:"pollInterval"`           // viewpoint movement check
	TickInterval      Duration `yaml:"tickInterval" json:"tickInterval"`           // one mesh integrated per tick
	IntegrationBuffer int      `yaml:"integrationBuffer" json:"integrationBuffer"` // initial queue capacity
}

type BiomeConfig struct {
	Temperature noise.Settings `yaml:"temperature" json:"temperature"`
	CenterWarp  noise.Warp     `yaml:"centerWarp" json:"centerWarp"`
	Table       []BiomeEntry   `yaml:"table" json:"table"`
}

// BiomeEntry maps the temperature range [Start, End) to a biome.
type BiomeEntry struct {
	Start float64         `yaml:"start" json:"start"`
	End   float64         `yaml:"end" json:"end"`
	Biome biome.Generator `yaml:"biome" json:"biome"`
}

type EditConfig struct {
	// Breakable overrides the set of types that take durability damage.
	// Empty keeps the built-in set.
	Breakable []voxel.Type `yaml:"breakable,omitempty" json:"breakable,omitempty"`
}

type PersistenceConfig struct {
	Dir          string   `yaml:"dir" json:"dir"`
	Autosave     Duration `yaml:"autosave" json:"autosave"` // 0 disables periodic saves
	ModifiedOnly bool     `yaml:"modifiedOnly" json:"modifiedOnly"`
}

// Load reads the configuration at path. YAML is used unless the file has a
// .json extension. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate ensures the configuration contains sane values.
func (c *Config) Validate() error {
	if c.World.ChunkSize <= 0 || c.World.ChunkHeight <= 0 {
		return errors.New("world chunk dimensions must be positive")
	}
	if c.World.DrawRange <= 0 {
		return errors.New("world.drawRange must be positive")
	}
	if c.Stream.Workers < 0 {
		return errors.New("stream.workers cannot be negative")
	}
	if c.Stream.PollInterval < 0 || c.Stream.TickInterval < 0 {
		return errors.New("stream intervals cannot be negative")
	}
	if c.Stream.IntegrationBuffer < 0 {
		return errors.New("stream.integrationBuffer cannot be negative")
	}
	if c.Persistence.Autosave < 0 {
		return errors.New("persistence.autosave cannot be negative")
	}

	catalog, err := c.Catalog()
	if err != nil {
		return fmt.Errorf("voxels: %w", err)
	}
	for _, t := range requiredTypes {
		if !catalog.Has(t) {
			return fmt.Errorf("voxels must define %v", t)
		}
	}
	for i, t := range c.Edit.Breakable {
		if !catalog.Has(t) {
			return fmt.Errorf("edit.breakable[%d]: %v is not in the catalog", i, t)
		}
	}
	return c.validateBiomes(catalog)
}

// requiredTypes are produced by generation regardless of the biome table.
var requiredTypes = []voxel.Type{
	voxel.Air,
	voxel.Water,
	voxel.Sand,
	voxel.Stone,
	voxel.Dirt,
	voxel.TreeTrunk,
	voxel.TreeLeaves,
}

func (c *Config) validateBiomes(catalog *voxel.Catalog) error {
	if len(c.Biomes.Table) == 0 {
		return errors.New("biomes.table cannot be empty")
	}
	for i, e := range c.Biomes.Table {
		if e.Start < 0 || e.End > 1 || e.Start >= e.End {
			return fmt.Errorf("biomes.table[%d] range must satisfy 0 <= start < end <= 1", i)
		}
		if e.Biome.Name == "" {
			return fmt.Errorf("biomes.table[%d].biome.name must be set", i)
		}
		if err := e.Biome.Layers.Validate(); err != nil {
			return fmt.Errorf("biomes.table[%d].biome.layers: %w", i, err)
		}
		handlers := append(append([]layers.Handler(nil), e.Biome.Layers.Column...), e.Biome.Layers.Additional...)
		for _, h := range handlers {
			if h.Voxel != voxel.Nothing && !catalog.Has(h.Voxel) {
				return fmt.Errorf("biomes.table[%d] uses %v which is not in the catalog", i, h.Voxel)
			}
		}
	}
	return nil
}
