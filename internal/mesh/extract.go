package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

// Extract builds the mesh of c. Neighbours outside the chunk are read from
// store; an unloaded neighbour counts as transparent.
func Extract(store *world.Store, c *world.Chunk, catalog *voxel.Catalog) *Mesh {
	m := New()
	dim := c.Dim
	for index, t := range c.Voxels() {
		if t == voxel.Air || t == voxel.Nothing {
			continue
		}
		x, y, z := dim.Position(index)
		local := world.Pos{X: x, Y: y, Z: z}
		props := catalog.Get(t)
		for _, dir := range world.FaceOrder {
			neighbour := store.ChunkVoxel(c, local.Add(dir.Vector()))
			if t == voxel.Water {
				if neighbour == voxel.Air {
					m.Water.addFace(dir, local, props, catalog.Atlas())
				}
				continue
			}
			if neighbour == voxel.Nothing || !catalog.IsSolid(neighbour) {
				m.addFace(dir, local, props, catalog.Atlas())
			}
		}
	}
	return m
}

func (m *Mesh) addFace(dir world.Direction, p world.Pos, props voxel.Properties, atlas voxel.Atlas) {
	collider := props.GeneratesCollider
	for _, corner := range faceCorners(dir) {
		m.addVertex(mgl32.Vec3{
			float32(p.X) + corner[0],
			float32(p.Y) + corner[1],
			float32(p.Z) + corner[2],
		}, collider)
	}
	m.addQuadTriangles(collider)

	uvs := atlas.FaceUVs(faceTile(dir, props))
	m.UVs = append(m.UVs, uvs[:]...)
}

func faceTile(dir world.Direction, props voxel.Properties) voxel.Tile {
	switch dir {
	case world.Up:
		return props.Up
	case world.Down:
		return props.Down
	default:
		return props.Side
	}
}

const h = 0.5

var corners = [...][4]mgl32.Vec3{
	world.Backwards: {{-h, -h, -h}, {-h, h, -h}, {h, h, -h}, {h, -h, -h}},
	world.Down:      {{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}},
	world.Forward:   {{h, -h, h}, {h, h, h}, {-h, h, h}, {-h, -h, h}},
	world.Left:      {{-h, -h, h}, {-h, h, h}, {-h, h, -h}, {-h, -h, -h}},
	world.Right:     {{h, -h, -h}, {h, h, -h}, {h, h, h}, {h, -h, h}},
	world.Up:        {{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}},
}

// faceCorners returns the four vertex offsets of a face in winding order.
func faceCorners(dir world.Direction) [4]mgl32.Vec3 {
	if int(dir) >= len(corners) {
		panic(fmt.Sprintf("invalid direction %d", dir))
	}
	return corners[dir]
}
