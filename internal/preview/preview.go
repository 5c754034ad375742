package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

const (
	tileWidth    = 32
	tileHeight   = 16
	blockHeight  = 16
	ambientLight = 0.2
)

var background = color.NRGBA{R: 10, G: 10, B: 18, A: 255}

// Palette maps voxel types to "#rrggbb" colours.
type Palette map[voxel.Type]string

// DefaultPalette colours every generated voxel type.
var DefaultPalette = Palette{
	voxel.Grass:      "#5d9b3d",
	voxel.Dirt:       "#8b5a2b",
	voxel.Stone:      "#7d7d7d",
	voxel.Sand:       "#dbcf8e",
	voxel.Water:      "#2f5fbf",
	voxel.TreeTrunk:  "#6b4423",
	voxel.TreeLeaves: "#2e6b1f",
	voxel.Snow:       "#f2f4f7",
	voxel.Ice:        "#a5d8f0",
}

type voxelPreview struct {
	local   world.Pos
	voxel   voxel.Type
	screenX int
	screenY int
}

// Render draws an isometric view of the voxels of c that have at least one
// exposed face. Neighbouring chunks in store are consulted for exposure.
func Render(store *world.Store, c *world.Chunk, palette Palette) *image.NRGBA {
	dim := c.Dim
	width := dim.Size*tileWidth + tileWidth
	height := dim.Size*tileHeight + dim.Height*blockHeight + tileHeight
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	voxels := collectVisible(store, c)
	sort.Slice(voxels, func(i, j int) bool {
		a, b := voxels[i].local, voxels[j].local
		if a.X+a.Z != b.X+b.Z {
			return a.X+a.Z < b.X+b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	offsetX := dim.Size*tileWidth/2 + tileWidth/2
	offsetY := dim.Height * blockHeight
	for _, v := range voxels {
		renderVoxel(img, offsetX+v.screenX, offsetY+v.screenY, resolveColor(palette, v.voxel))
	}
	return img
}

// Save renders c and writes it to dir as chunk_<x>_<y>_<z>.png.
func Save(store *world.Store, c *world.Chunk, palette Palette, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create preview directory: %w", err)
	}
	img := Render(store, c, palette)

	path := filepath.Join(dir, fmt.Sprintf("chunk_%d_%d_%d.png", c.Origin.X, c.Origin.Y, c.Origin.Z))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return path, nil
}

func collectVisible(store *world.Store, c *world.Chunk) []voxelPreview {
	out := make([]voxelPreview, 0, c.Dim.Size*c.Dim.Size*2)
	for x := 0; x < c.Dim.Size; x++ {
		for z := 0; z < c.Dim.Size; z++ {
			for y := 0; y < c.Dim.Height; y++ {
				t, _ := c.LocalVoxel(x, y, z)
				if t == voxel.Air || t == voxel.Nothing {
					continue
				}
				local := world.Pos{X: x, Y: y, Z: z}
				if !exposed(store, c, local) {
					continue
				}
				out = append(out, voxelPreview{
					local:   local,
					voxel:   t,
					screenX: (x - z) * tileWidth / 2,
					screenY: (x+z)*tileHeight/2 - y*blockHeight,
				})
			}
		}
	}
	return out
}

func exposed(store *world.Store, c *world.Chunk, local world.Pos) bool {
	for _, d := range world.FaceOrder {
		n := store.ChunkVoxel(c, local.Add(d.Vector()))
		if n == voxel.Air || n == voxel.Nothing || n == voxel.Water || n == voxel.TreeLeaves {
			return true
		}
	}
	return false
}

func renderVoxel(img *image.NRGBA, baseX, baseY int, base color.NRGBA) {
	topColor := applyLighting(base, ambientLight+0.4)
	leftColor := applyLighting(base, ambientLight+0.25)
	rightColor := applyLighting(base, ambientLight+0.15)

	top := []image.Point{
		{X: baseX, Y: baseY - blockHeight},
		{X: baseX + tileWidth/2, Y: baseY - blockHeight + tileHeight/2},
		{X: baseX, Y: baseY - blockHeight + tileHeight},
		{X: baseX - tileWidth/2, Y: baseY - blockHeight + tileHeight/2},
	}
	left := []image.Point{
		{X: baseX - tileWidth/2, Y: baseY - blockHeight + tileHeight/2},
		{X: baseX, Y: baseY - blockHeight + tileHeight},
		{X: baseX, Y: baseY + tileHeight},
		{X: baseX - tileWidth/2, Y: baseY + tileHeight/2},
	}
	right := []image.Point{
		{X: baseX + tileWidth/2, Y: baseY - blockHeight + tileHeight/2},
		{X: baseX, Y: baseY - blockHeight + tileHeight},
		{X: baseX, Y: baseY + tileHeight},
		{X: baseX + tileWidth/2, Y: baseY + tileHeight/2},
	}

	fillPolygon(img, left, leftColor)
	fillPolygon(img, right, rightColor)
	fillPolygon(img, top, topColor)
}

func resolveColor(palette Palette, t voxel.Type) color.NRGBA {
	if hex, ok := palette[t]; ok {
		if col, ok := parseHexColor(hex); ok {
			return col
		}
	}
	if hex, ok := DefaultPalette[t]; ok {
		if col, ok := parseHexColor(hex); ok {
			return col
		}
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = math.Max(0, math.Min(1, factor))
	return color.NRGBA{
		R: uint8(math.Round(float64(base.R) * factor)),
		G: uint8(math.Round(float64(base.G) * factor)),
		B: uint8(math.Round(float64(base.B) * factor)),
		A: 255,
	}
}

// fillPolygon scanline-fills a convex polygon, clipped to the image.
func fillPolygon(img *image.NRGBA, pts []image.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	bounds := img.Bounds()
	minY = max(minY, bounds.Min.Y)
	maxY = min(maxY, bounds.Max.Y-1)

	xs := make([]int, 0, len(pts))
	for y := minY; y <= maxY; y++ {
		xs = xs[:0]
		for i := range pts {
			j := (i + 1) % len(pts)
			x1, y1 := pts[i].X, pts[i].Y
			x2, y2 := pts[j].X, pts[j].Y
			if y1 == y2 || y < min(y1, y2) || y >= max(y1, y2) {
				continue
			}
			xs = append(xs, x1+(y-y1)*(x2-x1)/(y2-y1))
		}
		sort.Ints(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			start := max(xs[i], bounds.Min.X)
			end := min(xs[i+1], bounds.Max.X-1)
			for x := start; x <= end; x++ {
				img.SetNRGBA(x, y, col)
			}
		}
	}
}
