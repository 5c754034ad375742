package render

import (
	"sync"

	"voxelterrain/internal/mesh"
	"voxelterrain/internal/world"
)

// Handle identifies a realized render chunk.
type Handle struct {
	ID  int
	Pos world.Pos
}

// Pool realizes and retires renderable chunks. Implementations are driven
// from the owning goroutine only.
type Pool interface {
	Acquire(pos world.Pos) Handle
	Release(h Handle)
	Upload(h Handle, m *mesh.Mesh)
}

// Object is the in-memory stand-in for a renderer object.
type Object struct {
	ID      int
	Pos     world.Pos
	Active  bool
	Mesh    *mesh.Mesh
	Uploads int
}

// MemoryPool keeps render objects in memory and reuses released ones before
// allocating new ones.
type MemoryPool struct {
	mu      sync.Mutex
	objects []*Object
	free    []int
	uploads int
}

func NewMemoryPool() *MemoryPool {
	return &MemoryPool{}
}

func (p *MemoryPool) Acquire(pos world.Pos) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	var obj *Object
	if n := len(p.free); n > 0 {
		obj = p.objects[p.free[n-1]]
		p.free = p.free[:n-1]
	} else {
		obj = &Object{ID: len(p.objects)}
		p.objects = append(p.objects, obj)
	}
	obj.Pos = pos
	obj.Active = true
	obj.Mesh = nil
	obj.Uploads = 0
	return Handle{ID: obj.ID, Pos: pos}
}

func (p *MemoryPool) Release(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj := p.lookup(h)
	if obj == nil || !obj.Active {
		return
	}
	obj.Active = false
	obj.Mesh = nil
	p.free = append(p.free, obj.ID)
}

func (p *MemoryPool) Upload(h Handle, m *mesh.Mesh) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj := p.lookup(h)
	if obj == nil || !obj.Active {
		return
	}
	obj.Mesh = m
	obj.Uploads++
	p.uploads++
}

func (p *MemoryPool) lookup(h Handle) *Object {
	if h.ID < 0 || h.ID >= len(p.objects) {
		return nil
	}
	obj := p.objects[h.ID]
	if obj.Pos != h.Pos {
		return nil
	}
	return obj
}

// Active returns the number of realized render objects.
func (p *MemoryPool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects) - len(p.free)
}

// Allocated returns how many render objects were ever created.
func (p *MemoryPool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// Uploads returns the total number of mesh uploads.
func (p *MemoryPool) Uploads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uploads
}

// Object returns a copy of the render object behind h.
func (p *MemoryPool) Object(h Handle) (Object, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	obj := p.lookup(h)
	if obj == nil {
		return Object{}, false
	}
	return *obj, true
}
