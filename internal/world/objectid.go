package world

import "sync/atomic"

// ObjectIDGenerator generates unique object IDs for world entities.
//
// ID ranges (convention):
//
//	0x00000000 - 0x0FFFFFFF: Reserved (0 = global / invalid)
//	0x10000000 - 0x1FFFFFFF: Players
//	0x20000000 - 0x2FFFFFFF: Persistent NPCs and mobs
//	0x30000000 - 0x3FFFFFFF: Quest clones (ephemeral)
type ObjectIDGenerator struct {
	nextPlayerID atomic.Uint32
	nextNpcID    atomic.Uint32
	nextCloneID  atomic.Uint32
}

// NewObjectIDGenerator creates a new ID generator.
func NewObjectIDGenerator() *ObjectIDGenerator {
	gen := &ObjectIDGenerator{}
	gen.nextPlayerID.Store(0x10000000)
	gen.nextNpcID.Store(0x20000000)
	gen.nextCloneID.Store(0x30000000)
	return gen
}

// NextPlayerID generates next unique player object ID.
func (g *ObjectIDGenerator) NextPlayerID() uint32 {
	return g.nextPlayerID.Add(1)
}

// NextNpcID generates next unique NPC object ID.
func (g *ObjectIDGenerator) NextNpcID() uint32 {
	return g.nextNpcID.Add(1)
}

// NextCloneID generates next unique quest clone object ID.
func (g *ObjectIDGenerator) NextCloneID() uint32 {
	return g.nextCloneID.Add(1)
}

// IsClone reports whether objectID was issued from the clone range.
func IsClone(objectID uint32) bool {
	return objectID >= 0x30000000 && objectID < 0x40000000
}
