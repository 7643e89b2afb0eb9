package scene

import (
	"github.com/yohamta/donburi"
	"github.com/zeusync/indicator/internal/core/geom"
)

// NetID identifies a scene object across machines. Zero means "no object".
type NetID uint64

type NetIdentityData struct {
	ID NetID
}

type TransformData struct {
	Position geom.Vec3
}

// SocketsData holds named attachment points relative to the transform.
type SocketsData struct {
	Offsets map[string]geom.Vec3
}

// BoundsData is the half extent of the object's local bounds around its position.
type BoundsData struct {
	Extent geom.Vec3
}

// OwnerData links a component to the actor that owns it. Actors own themselves.
type OwnerData struct {
	Actor NetID
}

var (
	NetIdentity = donburi.NewComponentType[NetIdentityData]()
	Transform   = donburi.NewComponentType[TransformData]()
	Sockets     = donburi.NewComponentType[SocketsData]()
	Bounds      = donburi.NewComponentType[BoundsData]()
	Owner       = donburi.NewComponentType[OwnerData]()
)
