package voxel

// DefaultProperties mirrors the stock atlas layout: grass top, dirt, stone,
// sand, water, trunk, leaves, snow and ice.
func DefaultProperties() []Properties {
	return []Properties{
		{Type: Air, Solid: false, GeneratesCollider: false, Durability: 1},
		{Type: Grass, Up: Tile{0, 15}, Down: Tile{2, 15}, Side: Tile{1, 15}, Solid: true, GeneratesCollider: true, Durability: 3, Placeable: true},
		{Type: Dirt, Up: Tile{2, 15}, Down: Tile{2, 15}, Side: Tile{2, 15}, Solid: true, GeneratesCollider: true, Durability: 2, Placeable: true},
		{Type: Stone, Up: Tile{3, 15}, Down: Tile{3, 15}, Side: Tile{3, 15}, Solid: true, GeneratesCollider: true, Durability: 6, Placeable: true},
		{Type: Sand, Up: Tile{4, 15}, Down: Tile{4, 15}, Side: Tile{4, 15}, Solid: true, GeneratesCollider: true, Durability: 2, Placeable: true},
		{Type: Water, Up: Tile{5, 15}, Down: Tile{5, 15}, Side: Tile{5, 15}, Solid: false, GeneratesCollider: false, Durability: 1},
		{Type: TreeTrunk, Up: Tile{7, 15}, Down: Tile{7, 15}, Side: Tile{6, 15}, Solid: true, GeneratesCollider: true, Durability: 4, Placeable: true},
		{Type: TreeLeaves, Up: Tile{8, 15}, Down: Tile{8, 15}, Side: Tile{8, 15}, Solid: false, GeneratesCollider: true, Durability: 1, Placeable: true},
		{Type: Snow, Up: Tile{9, 15}, Down: Tile{2, 15}, Side: Tile{10, 15}, Solid: true, GeneratesCollider: true, Durability: 2, Placeable: true},
		{Type: Ice, Up: Tile{11, 15}, Down: Tile{11, 15}, Side: Tile{11, 15}, Solid: true, GeneratesCollider: true, Durability: 3, Placeable: true},
	}
}

// DefaultAtlas is a 16x16 tile atlas.
func DefaultAtlas() Atlas {
	return Atlas{TileDimX: 1.0 / 16, TileDimY: 1.0 / 16, TileOffset: DefaultTileOffset}
}
