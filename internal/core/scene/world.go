// Package scene is the anchor provider for indicators: a donburi world whose
// entities carry transforms, sockets and bounds, addressed by network id.
package scene

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
	"github.com/zeusync/indicator/internal/core/geom"
)

var ownedBounds = donburi.NewQuery(filter.Contains(Owner, Bounds, Transform))

// World wraps a donburi world and keeps a NetID index. It is driven from the
// update thread only.
type World struct {
	ecs    donburi.World
	byID   map[NetID]donburi.Entity
	nextID NetID
}

func NewWorld() *World {
	return &World{
		ecs:  donburi.NewWorld(),
		byID: make(map[NetID]donburi.Entity),
	}
}

// ECS exposes the underlying donburi world for systems that want to query it.
func (w *World) ECS() donburi.World {
	return w.ecs
}

// SpawnActor creates a root object at pos with the given half extent.
func (w *World) SpawnActor(pos, extent geom.Vec3) NetID {
	id := w.allocate()
	w.spawn(id, id, pos, extent)
	return id
}

// SpawnComponent creates an object owned by actor. It returns 0 when the actor
// does not exist.
func (w *World) SpawnComponent(actor NetID, pos, extent geom.Vec3) NetID {
	if !w.Valid(actor) {
		return 0
	}
	id := w.allocate()
	w.spawn(id, actor, pos, extent)
	return id
}

// SpawnWithID recreates an object under a known id, as a client does when it
// mirrors the server's scene. An existing object with that id is replaced.
func (w *World) SpawnWithID(id, actor NetID, pos, extent geom.Vec3) {
	if id == 0 {
		return
	}
	if _, ok := w.byID[id]; ok {
		w.destroyOne(id)
	}
	if id > w.nextID {
		w.nextID = id
	}
	if actor == 0 {
		actor = id
	}
	w.spawn(id, actor, pos, extent)
}

// Destroy removes the object. Destroying an actor also destroys its components.
func (w *World) Destroy(id NetID) {
	entity, ok := w.byID[id]
	if !ok {
		return
	}
	entry := w.ecs.Entry(entity)
	if Owner.Get(entry).Actor == id {
		var owned []NetID
		ownedBounds.Each(w.ecs, func(e *donburi.Entry) {
			if Owner.Get(e).Actor == id {
				owned = append(owned, NetIdentity.Get(e).ID)
			}
		})
		for _, child := range owned {
			w.destroyOne(child)
		}
	}
	w.destroyOne(id)
}

func (w *World) Valid(id NetID) bool {
	entity, ok := w.byID[id]
	return ok && w.ecs.Valid(entity)
}

func (w *World) SetPosition(id NetID, pos geom.Vec3) bool {
	entry, ok := w.entry(id)
	if !ok {
		return false
	}
	Transform.Get(entry).Position = pos
	return true
}

// SetSocket registers or moves a named attachment point relative to the object.
func (w *World) SetSocket(id NetID, name string, offset geom.Vec3) bool {
	entry, ok := w.entry(id)
	if !ok {
		return false
	}
	sockets := Sockets.Get(entry)
	if sockets.Offsets == nil {
		sockets.Offsets = make(map[string]geom.Vec3)
	}
	sockets.Offsets[name] = offset
	return true
}

// Location resolves the world position of id, or of its named socket. An empty
// or unknown socket name falls back to the base transform.
func (w *World) Location(id NetID, socket string) (geom.Vec3, bool) {
	entry, ok := w.entry(id)
	if !ok {
		return geom.Vec3{}, false
	}
	pos := Transform.Get(entry).Position
	if socket != "" {
		if offset, found := Sockets.Get(entry).Offsets[socket]; found {
			return geom.Add(pos, offset), true
		}
	}
	return pos, true
}

// ComponentBounds returns the world bounds of a single object.
func (w *World) ComponentBounds(id NetID) (geom.Box, bool) {
	entry, ok := w.entry(id)
	if !ok {
		return geom.Box{}, false
	}
	return boundsOf(entry), true
}

// ActorBounds returns the union of the bounds of every object owned by the
// actor that owns id.
func (w *World) ActorBounds(id NetID) (geom.Box, bool) {
	entry, ok := w.entry(id)
	if !ok {
		return geom.Box{}, false
	}
	actor := Owner.Get(entry).Actor
	box := geom.Box{}
	ownedBounds.Each(w.ecs, func(e *donburi.Entry) {
		if Owner.Get(e).Actor == actor {
			box = box.Union(boundsOf(e))
		}
	})
	return box, box.Valid
}

// Len returns the number of live objects.
func (w *World) Len() int {
	return len(w.byID)
}

func (w *World) allocate() NetID {
	w.nextID++
	return w.nextID
}

func (w *World) spawn(id, actor NetID, pos, extent geom.Vec3) {
	entity := w.ecs.Create(NetIdentity, Transform, Sockets, Bounds, Owner)
	entry := w.ecs.Entry(entity)
	NetIdentity.Set(entry, &NetIdentityData{ID: id})
	Transform.Set(entry, &TransformData{Position: pos})
	Sockets.Set(entry, &SocketsData{})
	Bounds.Set(entry, &BoundsData{Extent: extent})
	Owner.Set(entry, &OwnerData{Actor: actor})
	w.byID[id] = entity
}

func (w *World) destroyOne(id NetID) {
	entity, ok := w.byID[id]
	if !ok {
		return
	}
	delete(w.byID, id)
	if w.ecs.Valid(entity) {
		w.ecs.Remove(entity)
	}
}

func (w *World) entry(id NetID) (*donburi.Entry, bool) {
	entity, ok := w.byID[id]
	if !ok || !w.ecs.Valid(entity) {
		return nil, false
	}
	return w.ecs.Entry(entity), true
}

func boundsOf(entry *donburi.Entry) geom.Box {
	return geom.BoxAround(Transform.Get(entry).Position, Bounds.Get(entry).Extent)
}
