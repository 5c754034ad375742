package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"voxelterrain/internal/noise"
	"voxelterrain/internal/voxel"
	"voxelterrain/internal/world"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no saved snapshot")

// Params are the world parameters a saved world is bound to.
type Params struct {
	ChunkSize   int         `json:"chunkSize"`
	ChunkHeight int         `json:"chunkHeight"`
	DrawRange   int         `json:"drawRange"`
	SeedOffset  noise.Vec2i `json:"seedOffset"`
}

func (p Params) Dimensions() world.Dimensions {
	return world.Dimensions{Size: p.ChunkSize, Height: p.ChunkHeight}
}

// ChunkRecord is a chunk's voxel array without any reference to its store.
type ChunkRecord struct {
	Voxels   []byte `json:"voxels"`
	Modified bool   `json:"modified"`
}

// Snapshot is a saved world: parameters, viewpoint and data chunks keyed by
// FormatKey of their origin.
type Snapshot struct {
	ID        uuid.UUID              `json:"id"`
	SavedAt   time.Time              `json:"savedAt"`
	Params    Params                 `json:"params"`
	Viewpoint world.Pos              `json:"viewpoint"`
	Chunks    map[string]ChunkRecord `json:"chunks"`
}

// Store saves and loads snapshots.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Options control what Capture includes.
type Options struct {
	// ModifiedOnly keeps only player-modified chunks; the rest regenerate
	// from the seed.
	ModifiedOnly bool
}

// FormatKey renders a chunk origin as "(x, y, z)".
func FormatKey(p world.Pos) string {
	return p.String()
}

// ParseKey is the inverse of FormatKey. Parentheses are optional.
func ParseKey(key string) (world.Pos, error) {
	trimmed := strings.TrimSpace(key)
	trimmed = strings.TrimPrefix(trimmed, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 3 {
		return world.Pos{}, fmt.Errorf("parse chunk key %q: expected 3 components", key)
	}
	var values [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return world.Pos{}, fmt.Errorf("parse chunk key %q: %w", key, err)
		}
		values[i] = v
	}
	return world.Pos{X: values[0], Y: values[1], Z: values[2]}, nil
}

// Capture copies the chunks of store into a new snapshot.
func Capture(store *world.Store, params Params, viewpoint world.Pos, opts Options) *Snapshot {
	snap := &Snapshot{
		ID:        uuid.New(),
		SavedAt:   time.Now().UTC(),
		Params:    params,
		Viewpoint: viewpoint,
		Chunks:    make(map[string]ChunkRecord),
	}
	for _, c := range store.Chunks() {
		modified := c.Modified()
		if opts.ModifiedOnly && !modified {
			continue
		}
		snap.Chunks[FormatKey(c.Origin)] = ChunkRecord{
			Voxels:   encodeVoxels(c.Voxels()),
			Modified: modified,
		}
	}
	return snap
}

// RestoreChunks rebuilds the saved chunks. Records whose size does not
// match the snapshot parameters are rejected.
func (s *Snapshot) RestoreChunks() ([]*world.Chunk, error) {
	dim := s.Params.Dimensions()
	if dim.Size <= 0 || dim.Height <= 0 {
		return nil, fmt.Errorf("restore snapshot %s: invalid chunk dimensions %+v", s.ID, dim)
	}
	out := make([]*world.Chunk, 0, len(s.Chunks))
	for key, rec := range s.Chunks {
		origin, err := ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("restore snapshot %s: %w", s.ID, err)
		}
		if origin != dim.ChunkOrigin(origin) {
			return nil, fmt.Errorf("restore snapshot %s: chunk %s not aligned to grid", s.ID, key)
		}
		voxels, err := decodeVoxels(rec.Voxels)
		if err != nil {
			return nil, fmt.Errorf("restore chunk %s: %w", key, err)
		}
		c, ok := world.RestoreChunk(origin, dim, voxels, rec.Modified)
		if !ok {
			return nil, fmt.Errorf("restore chunk %s: expected %d voxels, got %d", key, dim.Volume(), len(voxels))
		}
		out = append(out, c)
	}
	return out, nil
}

func encodeVoxels(voxels []voxel.Type) []byte {
	out := make([]byte, len(voxels))
	for i, v := range voxels {
		out[i] = byte(v)
	}
	return out
}

func decodeVoxels(raw []byte) ([]voxel.Type, error) {
	out := make([]voxel.Type, len(raw))
	for i, b := range raw {
		t := voxel.Type(b)
		if !t.Valid() {
			return nil, fmt.Errorf("unknown voxel type %d at index %d", b, i)
		}
		out[i] = t
	}
	return out, nil
}

func cloneSnapshot(s *Snapshot) *Snapshot {
	dup := *s
	dup.Chunks = make(map[string]ChunkRecord, len(s.Chunks))
	for k, rec := range s.Chunks {
		dup.Chunks[k] = ChunkRecord{
			Voxels:   append([]byte(nil), rec.Voxels...),
			Modified: rec.Modified,
		}
	}
	return &dup
}
