package world

import "fmt"

// Pos is an integer position in world voxel space. Chunk origins are Pos
// values aligned to the chunk grid.
type Pos struct {
	X int
	Y int
	Z int
}

func (p Pos) Add(o Pos) Pos {
	return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Pos) Sub(o Pos) Pos {
	return Pos{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// Dimensions defines the size of a chunk in voxels. Chunks are Size wide on
// both horizontal axes.
type Dimensions struct {
	Size   int
	Height int
}

func (d Dimensions) Volume() int {
	return d.Size * d.Size * d.Height
}

// Index flattens a local position as x + size*y + size*height*z.
func (d Dimensions) Index(x, y, z int) int {
	return x + d.Size*y + d.Size*d.Height*z
}

// Position is the inverse of Index.
func (d Dimensions) Position(index int) (int, int, int) {
	x := index % d.Size
	y := (index / d.Size) % d.Height
	z := index / (d.Size * d.Height)
	return x, y, z
}

func (d Dimensions) Contains(x, y, z int) bool {
	return x >= 0 && x < d.Size &&
		y >= 0 && y < d.Height &&
		z >= 0 && z < d.Size
}

// ChunkOrigin returns the origin of the chunk containing p.
func (d Dimensions) ChunkOrigin(p Pos) Pos {
	return Pos{
		X: floorDiv(p.X, d.Size) * d.Size,
		Y: floorDiv(p.Y, d.Height) * d.Height,
		Z: floorDiv(p.Z, d.Size) * d.Size,
	}
}

func floorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}
