package stream

import (
	"context"
	"errors"
	"time"

	"voxelterrain/internal/world"
)

// ViewpointProvider reports the current viewpoint in world coordinates.
type ViewpointProvider interface {
	Viewpoint() world.Pos
}

// ViewpointFunc adapts a function to ViewpointProvider.
type ViewpointFunc func() world.Pos

func (f ViewpointFunc) Viewpoint() world.Pos {
	return f()
}

// Anchor is the chunk a viewpoint was last streamed around.
type Anchor struct {
	Origin world.Pos
	Center world.Column
}

// AnchorFor returns the anchor of the chunk containing viewpoint; its centre
// is the middle of the chunk footprint.
func AnchorFor(dim world.Dimensions, viewpoint world.Pos) Anchor {
	origin := dim.ChunkOrigin(viewpoint)
	return Anchor{
		Origin: origin,
		Center: world.Column{X: origin.X + dim.Size/2, Z: origin.Z + dim.Size/2},
	}
}

// Moved reports whether viewpoint left the neighbourhood of the anchor: more
// than one chunk away horizontally on either axis or one chunk height away
// vertically.
func (a Anchor) Moved(dim world.Dimensions, viewpoint world.Pos) bool {
	return abs(a.Center.X-viewpoint.X) > dim.Size ||
		abs(a.Center.Z-viewpoint.Z) > dim.Size ||
		abs(a.Origin.Y-viewpoint.Y) > dim.Height
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type cycleResult struct {
	viewpoint world.Pos
	err       error
}

// Run streams around provider until ctx is done or the terrain is closed. It
// starts a cycle at the current viewpoint, polls the provider every
// PollInterval while no cycle is running and integrates one mesh every
// TickInterval.
func (t *Terrain) Run(ctx context.Context, provider ViewpointProvider) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()

	pollTicker := time.NewTicker(t.opts.PollInterval)
	defer pollTicker.Stop()
	frameTicker := time.NewTicker(t.opts.TickInterval)
	defer frameTicker.Stop()

	results := make(chan cycleResult, 1)
	running := false
	var anchor Anchor
	start := func(viewpoint world.Pos) {
		running = true
		go func() {
			results <- cycleResult{viewpoint: viewpoint, err: t.Cycle(ctx, viewpoint)}
		}()
	}
	start(provider.Viewpoint())

	for {
		select {
		case <-ctx.Done():
			if running {
				<-results
			}
			return ctx.Err()
		case res := <-results:
			running = false
			if res.err != nil && !errors.Is(res.err, ErrCycleCancelled) {
				t.logger.Printf("terrain cycle at %v failed: %v", res.viewpoint, res.err)
			}
			anchor = AnchorFor(t.Params().Dimensions(), res.viewpoint)
		case <-pollTicker.C:
			if running {
				continue
			}
			viewpoint := provider.Viewpoint()
			if anchor.Moved(t.Params().Dimensions(), viewpoint) {
				start(viewpoint)
			}
		case <-frameTicker.C:
			t.Tick()
		}
	}
}
