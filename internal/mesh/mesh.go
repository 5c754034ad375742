package mesh

import "github.com/go-gl/mathgl/mgl32"

// Mesh is plain geometry produced for one chunk. Water faces go to the
// Water sub-mesh so the renderer can draw them with their own material.
type Mesh struct {
	Vertices  []mgl32.Vec3
	Triangles []int
	UVs       []mgl32.Vec2

	ColliderVertices  []mgl32.Vec3
	ColliderTriangles []int

	Water *Mesh
}

func New() *Mesh {
	return &Mesh{Water: &Mesh{}}
}

// FaceCount returns the number of quads in the base mesh.
func (m *Mesh) FaceCount() int {
	if m == nil {
		return 0
	}
	return len(m.Vertices) / 4
}

// WaterFaceCount returns the number of quads in the water sub-mesh.
func (m *Mesh) WaterFaceCount() int {
	if m == nil {
		return 0
	}
	return m.Water.FaceCount()
}

// Empty reports whether the mesh has no geometry at all.
func (m *Mesh) Empty() bool {
	return m.FaceCount() == 0 && m.WaterFaceCount() == 0
}

// Combined returns the base and water vertex streams concatenated, with the
// water triangles offset by the base vertex count. The second triangle list
// is the water sub-mesh.
func (m *Mesh) Combined() (vertices []mgl32.Vec3, uvs []mgl32.Vec2, base, water []int) {
	vertices = append(append([]mgl32.Vec3(nil), m.Vertices...), m.waterVertices()...)
	uvs = append(append([]mgl32.Vec2(nil), m.UVs...), m.waterUVs()...)
	base = append([]int(nil), m.Triangles...)
	if m.Water == nil {
		return vertices, uvs, base, nil
	}
	offset := len(m.Vertices)
	water = make([]int, len(m.Water.Triangles))
	for i, t := range m.Water.Triangles {
		water[i] = t + offset
	}
	return vertices, uvs, base, water
}

func (m *Mesh) waterVertices() []mgl32.Vec3 {
	if m.Water == nil {
		return nil
	}
	return m.Water.Vertices
}

func (m *Mesh) waterUVs() []mgl32.Vec2 {
	if m.Water == nil {
		return nil
	}
	return m.Water.UVs
}

func (m *Mesh) addVertex(v mgl32.Vec3, collider bool) {
	m.Vertices = append(m.Vertices, v)
	if collider {
		m.ColliderVertices = append(m.ColliderVertices, v)
	}
}

// addQuadTriangles appends two triangles over the last four vertices.
func (m *Mesh) addQuadTriangles(collider bool) {
	n := len(m.Vertices)
	m.Triangles = append(m.Triangles, n-4, n-3, n-2, n-4, n-2, n-1)
	if collider {
		c := len(m.ColliderVertices)
		m.ColliderTriangles = append(m.ColliderTriangles, c-4, c-3, c-2, c-4, c-2, c-1)
	}
}
