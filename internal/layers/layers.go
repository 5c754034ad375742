package layers

import (
	"fmt"
	"strings"

	"voxelterrain/internal/noise"
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

// Kind enumerates the column handlers a chain can hold.
type Kind uint8

const (
	Surface Kind = iota + 1
	Underground
	Water
	Stone
	Air
	Tree
)

var kindNames = map[Kind]string{
	Surface:     "surface",
	Underground: "underground",
	Water:       "water",
	Stone:       "stone",
	Air:         "air",
	Tree:        "tree",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown layer kind %d", uint8(k))
	}
	return []byte(name), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	key := strings.ToLower(strings.TrimSpace(string(b)))
	for kind, name := range kindNames {
		if name == key {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown layer kind %q", string(b))
}

const (
	DefaultStoneThreshold  = 0.5
	DefaultTreeHeightLimit = 25
	trunkHeight            = 4
)

// Handler is one entry of a layer chain. Only the fields relevant to Kind
// are read.
type Handler struct {
	Kind       Kind       `yaml:"kind" json:"kind"`
	Voxel      voxel.Type `yaml:"voxel,omitempty" json:"voxel,omitempty"`
	WaterLevel int        `yaml:"waterLevel,omitempty" json:"waterLevel,omitempty"`

	StoneThreshold float64        `yaml:"stoneThreshold,omitempty" json:"stoneThreshold,omitempty"`
	StoneNoise     noise.Settings `yaml:"stoneNoise,omitempty" json:"stoneNoise,omitempty"`
	Warp           noise.Warp     `yaml:"warp,omitempty" json:"warp,omitempty"`

	HeightLimit int `yaml:"heightLimit,omitempty" json:"heightLimit,omitempty"`
}

// Column carries everything a handler needs to decide one chunk column.
// X and Z are chunk-local; Surface is a world height.
type Column struct {
	Store   *world.Store
	Chunk   *world.Chunk
	Source  *noise.Source
	X       int
	Z       int
	Surface int
	Seed    noise.Vec2i
}

func (c Column) set(worldY int, t voxel.Type) {
	c.Store.SetChunkVoxel(c.Chunk, world.Pos{X: c.X, Y: worldY - c.Chunk.Origin.Y, Z: c.Z}, t)
}

func (c Column) get(worldY int) voxel.Type {
	return c.Store.ChunkVoxel(c.Chunk, world.Pos{X: c.X, Y: worldY - c.Chunk.Origin.Y, Z: c.Z})
}

// Handle applies the handler at world height y and reports whether it
// claimed the cell.
func (h Handler) Handle(col Column, y int) bool {
	switch h.Kind {
	case Surface:
		if y != col.Surface {
			return false
		}
		col.set(y, h.Voxel)
		return true
	case Underground:
		if y >= col.Surface {
			return false
		}
		col.set(y, h.Voxel)
		return true
	case Water:
		return h.handleWater(col, y)
	case Stone:
		return h.handleStone(col)
	case Air:
		if y <= col.Surface {
			return false
		}
		col.set(y, voxel.Air)
		return true
	case Tree:
		return h.handleTree(col)
	}
	panic(fmt.Sprintf("unknown layer kind %v", h.Kind))
}

func (h Handler) handleWater(col Column, y int) bool {
	if y <= col.Surface || y > h.WaterLevel {
		return false
	}
	fill := h.Voxel
	if fill == voxel.Nothing {
		fill = voxel.Water
	}
	col.set(y, fill)
	if y == col.Surface+1 {
		col.set(col.Surface, voxel.Sand)
	}
	return true
}

func (h Handler) handleStone(col Column) bool {
	origin := col.Chunk.Origin
	if origin.Y > col.Surface {
		return false
	}
	threshold := h.StoneThreshold
	if threshold == 0 {
		threshold = DefaultStoneThreshold
	}
	settings := h.StoneNoise.WithWorldOffset(col.Seed)
	sample := h.Warp.Sample(col.Source, origin.X+col.X, origin.Z+col.Z, settings)
	if !(sample > threshold) {
		return false
	}

	ceiling := origin.Y + col.Chunk.Dim.Height - 1
	end := col.Surface
	if origin.Y < 0 || end > ceiling {
		end = ceiling
	}
	for y := origin.Y; y <= end; y++ {
		col.set(y, voxel.Stone)
	}
	return true
}

// TreeLeafLayout is the leaf cluster placed above a trunk: a 5x5 layer, a
// 3x3 layer and a cap.
var TreeLeafLayout = buildLeafLayout()

func buildLeafLayout() []world.Pos {
	out := make([]world.Pos, 0, 35)
	for dx := -2; dx <= 2; dx++ {
		for dz := -2; dz <= 2; dz++ {
			out = append(out, world.Pos{X: dx, Y: 0, Z: dz})
		}
	}
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			out = append(out, world.Pos{X: dx, Y: 1, Z: dz})
		}
	}
	return append(out, world.Pos{X: 0, Y: 2, Z: 0})
}

func (h Handler) handleTree(col Column) bool {
	origin := col.Chunk.Origin
	if origin.Y < 0 {
		return false
	}
	limit := h.HeightLimit
	if limit == 0 {
		limit = DefaultTreeHeightLimit
	}
	if col.Surface >= limit || !col.Chunk.HasTree(origin.X+col.X, origin.Z+col.Z) {
		return false
	}
	if col.get(col.Surface) != voxel.Grass {
		return false
	}

	col.set(col.Surface, voxel.Dirt)
	for i := 1; i <= trunkHeight; i++ {
		col.set(col.Surface+i, voxel.TreeTrunk)
	}

	top := col.Surface + trunkHeight + 1 - origin.Y
	leaves := make([]world.Pos, 0, len(TreeLeafLayout))
	for _, offset := range TreeLeafLayout {
		leaves = append(leaves, world.Pos{X: col.X + offset.X, Y: top + offset.Y, Z: col.Z + offset.Z})
	}
	col.Chunk.QueueLeaves(leaves...)
	return false
}

// Chain is an ordered handler list. Column handlers run per cell with the
// first match winning; Additional handlers run once per column afterwards.
type Chain struct {
	Column     []Handler `yaml:"column" json:"column"`
	Additional []Handler `yaml:"additional" json:"additional"`
}

// Process fills one column of col.Chunk from its vertical origin upwards.
func (c Chain) Process(col Column) {
	origin := col.Chunk.Origin
	for y := origin.Y; y < origin.Y+col.Chunk.Dim.Height; y++ {
		for _, h := range c.Column {
			if h.Handle(col, y) {
				break
			}
		}
	}
	for _, h := range c.Additional {
		h.Handle(col, origin.Y)
	}
}

// Validate checks handler kinds and the fill types they need.
func (c Chain) Validate() error {
	check := func(group string, hs []Handler) error {
		for i, h := range hs {
			if _, ok := kindNames[h.Kind]; !ok {
				return fmt.Errorf("%s[%d]: unknown layer kind %d", group, i, uint8(h.Kind))
			}
			if (h.Kind == Surface || h.Kind == Underground) && (h.Voxel == voxel.Nothing || h.Voxel == voxel.Air) {
				return fmt.Errorf("%s[%d]: %v handler needs a solid voxel", group, i, h.Kind)
			}
		}
		return nil
	}
	if len(c.Column) == 0 {
		return fmt.Errorf("column handlers cannot be empty")
	}
	if err := check("column", c.Column); err != nil {
		return err
	}
	return check("additional", c.Additional)
}
