// Package world holds the live entity index the quest engine resolves actors against.
package world

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/udisondev/realmquest/internal/model"
)

// World indexes live entities by object ID and by name.
// Thread-safe for concurrent access.
type World struct {
	mu      sync.RWMutex
	objects map[uint32]model.Entity
	byName  map[string][]uint32 // lower(name) → objectIDs in spawn order

	ids *ObjectIDGenerator
}

// New creates an empty world.
func New() *World {
	return &World{
		objects: make(map[uint32]model.Entity, 256),
		byName:  make(map[string][]uint32, 256),
		ids:     NewObjectIDGenerator(),
	}
}

// IDs returns the world's object ID generator.
func (w *World) IDs() *ObjectIDGenerator {
	return w.ids
}

// Place adds an entity to the index. Implements model.Placement.
func (w *World) Place(e model.Entity) error {
	key := nameKey(e.Name())

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.objects[e.ObjectID()]; exists {
		return fmt.Errorf("object %d already in world", e.ObjectID())
	}
	w.objects[e.ObjectID()] = e
	w.byName[key] = append(w.byName[key], e.ObjectID())
	return nil
}

// Remove drops an entity from the index. Implements model.Placement.
func (w *World) Remove(objectID uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.objects[objectID]
	if !ok {
		return
	}
	delete(w.objects, objectID)

	key := nameKey(e.Name())
	ids := w.byName[key]
	for i, id := range ids {
		if id == objectID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(w.byName, key)
	} else {
		w.byName[key] = ids
	}
}

// FindEntitiesByName returns live entities with the given name in the realm.
// RealmNone matches any realm. Name comparison is case-insensitive.
func (w *World) FindEntitiesByName(name string, realm model.Realm) []model.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := w.byName[nameKey(name)]
	if len(ids) == 0 {
		return nil
	}

	out := make([]model.Entity, 0, len(ids))
	for _, id := range ids {
		e := w.objects[id]
		if e == nil {
			continue
		}
		if realm != model.RealmNone && e.Realm() != realm {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetObject returns an entity by object ID (nil if absent).
func (w *World) GetObject(objectID uint32) model.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.objects[objectID]
}

// ObjectCount returns number of entities in the world.
func (w *World) ObjectCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.objects)
}

// SpawnEntity creates an NPC from the descriptor. The NPC is not placed;
// callers invoke AddToWorld once it is configured.
func (w *World) SpawnEntity(desc model.NpcDescriptor) (model.Entity, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("spawning npc: empty name")
	}
	npc := model.NewNpc(w.ids.NextNpcID(), desc, w)

	slog.Debug("npc spawned",
		"objectID", npc.ObjectID(),
		"name", desc.Name,
		"realm", desc.Realm.String())

	return npc, nil
}

// SpawnClone creates an ephemeral quest NPC in the clone ID range.
func (w *World) SpawnClone(desc model.NpcDescriptor) (model.Entity, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("spawning clone: empty name")
	}
	return model.NewNpc(w.ids.NextCloneID(), desc, w), nil
}

func nameKey(name string) string {
	return strings.ToLower(name)
}
