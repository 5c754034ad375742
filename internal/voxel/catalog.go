package voxel

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Tile addresses one cell of the texture atlas.
type Tile struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Properties describes how a voxel type behaves and is textured.
type Properties struct {
	Type              Type `yaml:"type" json:"type"`
	Up                Tile `yaml:"up" json:"up"`
	Down              Tile `yaml:"down" json:"down"`
	Side              Tile `yaml:"side" json:"side"`
	Solid             bool `yaml:"solid" json:"solid"`
	GeneratesCollider bool `yaml:"generatesCollider" json:"generatesCollider"`
	Durability        int  `yaml:"durability" json:"durability"`
	Placeable         bool `yaml:"placeable" json:"placeable"`
}

// Atlas holds the UV dimensions of a single tile.
type Atlas struct {
	TileDimX   float32 `yaml:"tileDimX" json:"tileDimX"`
	TileDimY   float32 `yaml:"tileDimY" json:"tileDimY"`
	TileOffset float32 `yaml:"tileOffset" json:"tileOffset"`
}

const DefaultTileOffset = 0.001

// FaceUVs returns the four corner UVs of tile, inset by the tile offset, in
// face vertex order.
func (a Atlas) FaceUVs(tile Tile) [4]mgl32.Vec2 {
	x := a.TileDimX * float32(tile.X)
	y := a.TileDimY * float32(tile.Y)
	return [4]mgl32.Vec2{
		{x + a.TileDimX - a.TileOffset, y + a.TileOffset},
		{x + a.TileDimX - a.TileOffset, y + a.TileDimY - a.TileOffset},
		{x + a.TileOffset, y + a.TileDimY - a.TileOffset},
		{x + a.TileOffset, y + a.TileOffset},
	}
}

// Catalog is the immutable voxel property table. Build it once and share it.
type Catalog struct {
	entries   [len(typeNames)]*Properties
	placeable []Type
	atlas     Atlas
}

func NewCatalog(props []Properties, atlas Atlas) (*Catalog, error) {
	if atlas.TileDimX <= 0 || atlas.TileDimY <= 0 {
		return nil, errors.New("atlas tile dimensions must be positive")
	}
	c := &Catalog{atlas: atlas}
	for i := range props {
		p := props[i]
		if p.Type == Nothing || int(p.Type) >= len(typeNames) {
			return nil, fmt.Errorf("catalog entry %d: invalid type %v", i, p.Type)
		}
		if c.entries[p.Type] != nil {
			return nil, fmt.Errorf("catalog entry %d: duplicate type %v", i, p.Type)
		}
		if p.Durability <= 0 {
			p.Durability = 1
		}
		c.entries[p.Type] = &p
		if p.Placeable {
			c.placeable = append(c.placeable, p.Type)
		}
	}
	return c, nil
}

// Get returns the properties for t. A missing entry is a configuration error
// and panics.
func (c *Catalog) Get(t Type) Properties {
	if int(t) < len(c.entries) {
		if p := c.entries[t]; p != nil {
			return *p
		}
	}
	panic(fmt.Sprintf("voxel catalog has no entry for %v", t))
}

func (c *Catalog) Has(t Type) bool {
	return int(t) < len(c.entries) && c.entries[t] != nil
}

func (c *Catalog) IsSolid(t Type) bool {
	return c.Get(t).Solid
}

// Placeable lists placeable types in declaration order.
func (c *Catalog) Placeable() []Type {
	return append([]Type(nil), c.placeable...)
}

func (c *Catalog) Atlas() Atlas {
	return c.atlas
}
