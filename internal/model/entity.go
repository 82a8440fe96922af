package model

// Realm identifies the faction a world object belongs to.
type Realm byte

const (
	RealmNone Realm = iota
	RealmAlbion
	RealmMidgard
	RealmHibernia
)

// String returns human-readable realm name.
func (r Realm) String() string {
	switch r {
	case RealmAlbion:
		return "Albion"
	case RealmMidgard:
		return "Midgard"
	case RealmHibernia:
		return "Hibernia"
	default:
		return "None"
	}
}

// Entity is a world object that quests can address: NPCs, mobs, clones.
// Implementations must be safe for concurrent use.
type Entity interface {
	ObjectID() uint32
	Name() string
	Realm() Realm
	IsAlive() bool
	AddToWorld() error
	Delete()
}

// Placement is the world side of an entity lifecycle.
// Implemented by world.World.
type Placement interface {
	Place(e Entity) error
	Remove(objectID uint32)
}
