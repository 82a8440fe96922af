package quest

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/udisondev/realmquest/internal/model"
)

// World is the entity layer the registry resolves actors against.
// Implemented by world.World.
type World interface {
	FindEntitiesByName(name string, realm model.Realm) []model.Entity
	SpawnEntity(desc model.NpcDescriptor) (model.Entity, error)
	SpawnClone(desc model.NpcDescriptor) (model.Entity, error)
}

// ActorFactory constructs the world entity behind an actor.
// It runs under the registry lock and must not call back into the registry.
type ActorFactory func() (model.Entity, error)

// ActorHandle is a quest reference to a shared world entity.
// All mutation of the entity's AI state goes through Do.
type ActorHandle struct {
	mu     sync.Mutex
	name   string
	owner  Scope // NoScope for singletons
	clone  bool
	entity model.Entity
	dead   atomic.Bool

	holders map[Scope]struct{} // guarded by ActorRegistry.mu
}

// Name returns the logical actor name.
func (h *ActorHandle) Name() string { return h.name }

// Owner returns the scope the clone was created for (NoScope for singletons).
func (h *ActorHandle) Owner() Scope { return h.owner }

// IsClone reports whether the actor is an ephemeral clone.
func (h *ActorHandle) IsClone() bool { return h.clone }

// Entity returns the backing entity. Use Do for any mutation.
func (h *ActorHandle) Entity() model.Entity { return h.entity }

// ObjectID returns the backing entity's object ID.
func (h *ActorHandle) ObjectID() uint32 { return h.entity.ObjectID() }

// HookScope is the scope of bus registrations and timers bound to this actor.
func (h *ActorHandle) HookScope() Scope { return ActorScope(h.entity.ObjectID()) }

// IsAlive reports whether the handle has not been torn down and the entity lives.
func (h *ActorHandle) IsAlive() bool {
	return !h.dead.Load() && h.entity.IsAlive()
}

// Do runs fn with exclusive access to the actor.
// Returns ErrActorDead if the handle was torn down.
func (h *ActorHandle) Do(fn func(model.Entity) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dead.Load() {
		return fmt.Errorf("actor %q: %w", h.name, ErrActorDead)
	}
	return fn(h.entity)
}

type cloneKey struct {
	name  string
	owner Scope
}

// ActorRegistry resolves singleton actors and manages ephemeral clones.
// Thread-safe: check-then-create and teardown run under one mutex.
type ActorRegistry struct {
	mu         sync.Mutex
	singletons map[string]*ActorHandle
	clones     map[cloneKey]*ActorHandle
	held       map[Scope]map[string]*ActorHandle // holder → name → clone

	bus    *Bus
	timers *Scheduler

	created  atomic.Int64
	tornDown atomic.Int64
}

// NewActorRegistry creates a registry. Clone teardown revokes bus
// registrations and timers bound to the clone's HookScope.
func NewActorRegistry(bus *Bus, timers *Scheduler) *ActorRegistry {
	return &ActorRegistry{
		singletons: make(map[string]*ActorHandle, 32),
		clones:     make(map[cloneKey]*ActorHandle, 32),
		held:       make(map[Scope]map[string]*ActorHandle, 32),
		bus:        bus,
		timers:     timers,
	}
}

// ResolveSingleton returns the singleton actor named name, constructing it
// with factory the first time. Later calls return the cached handle even if
// the world object was removed externally. A failing factory is not cached.
func (r *ActorRegistry) ResolveSingleton(name string, factory ActorFactory) (*ActorHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.singletons[name]; ok {
		return h, nil
	}

	entity, err := factory()
	if err != nil {
		return nil, fmt.Errorf("resolving actor %q: %w", name, err)
	}

	h := &ActorHandle{name: name, entity: entity}
	r.singletons[name] = h

	slog.Debug("singleton actor resolved",
		"actor", name,
		"objectID", entity.ObjectID())

	return h, nil
}

// Singleton returns a resolved singleton (nil if never resolved).
func (r *ActorRegistry) Singleton(name string) *ActorHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.singletons[name]
}

// CloneRequest describes a clone acquisition.
type CloneRequest struct {
	Name string
	// Holder is the acquiring player's quest scope.
	Holder Scope
	// Peers are quest scopes of party members on the same quest.
	Peers []Scope
	// Owner is the group scope if grouped, otherwise Holder.
	Owner   Scope
	Factory ActorFactory
}

// AcquireClone returns a living clone for the request, attaching Holder as
// a reference. If Holder or any peer already holds a living clone of the
// same name it is shared; otherwise Factory builds a new one.
// created is true only for the call that constructed the clone.
func (r *ActorRegistry) AcquireClone(req CloneRequest) (*ActorHandle, bool, error) {
	if req.Owner.IsZero() {
		req.Owner = req.Holder
	}

	r.mu.Lock()
	h, created, stale, err := r.acquireLocked(req)
	r.mu.Unlock()

	// Клон, убитый снаружи, освобождаем уже вне блокировки реестра
	if stale != nil {
		r.teardown(stale)
	}
	return h, created, err
}

func (r *ActorRegistry) acquireLocked(req CloneRequest) (h *ActorHandle, created bool, stale *ActorHandle, err error) {
	if cur := r.held[req.Holder][req.Name]; cur != nil {
		if cur.IsAlive() {
			return cur, false, nil, nil
		}
		stale = r.detachLocked(req.Holder, req.Name)
	}
	for _, peer := range req.Peers {
		if h := r.heldLocked(peer, req.Name); h != nil {
			r.attachLocked(h, req.Holder)
			return h, false, stale, nil
		}
	}
	if h, ok := r.clones[cloneKey{name: req.Name, owner: req.Owner}]; ok && h.IsAlive() {
		r.attachLocked(h, req.Holder)
		return h, false, stale, nil
	}

	entity, err := req.Factory()
	if err != nil {
		return nil, false, stale, fmt.Errorf("creating clone %q: %w", req.Name, err)
	}

	h = &ActorHandle{
		name:    req.Name,
		owner:   req.Owner,
		clone:   true,
		entity:  entity,
		holders: make(map[Scope]struct{}, 2),
	}
	r.clones[cloneKey{name: req.Name, owner: req.Owner}] = h
	r.attachLocked(h, req.Holder)
	r.created.Add(1)

	slog.Debug("clone actor created",
		"actor", req.Name,
		"objectID", entity.ObjectID(),
		"owner", req.Owner.String())

	return h, true, stale, nil
}

// heldLocked returns the living clone name held by holder. Caller holds r.mu.
func (r *ActorRegistry) heldLocked(holder Scope, name string) *ActorHandle {
	h := r.held[holder][name]
	if h == nil || !h.IsAlive() {
		return nil
	}
	return h
}

func (r *ActorRegistry) attachLocked(h *ActorHandle, holder Scope) {
	h.holders[holder] = struct{}{}
	names := r.held[holder]
	if names == nil {
		names = make(map[string]*ActorHandle, 2)
		r.held[holder] = names
	}
	names[h.name] = h
}

// CloneFor returns the clone name held by holder (nil if none).
func (r *ActorRegistry) CloneFor(holder Scope, name string) *ActorHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[holder][name]
}

// ReleaseClone drops holder's reference to clone name. The clone is torn
// down when its last holder releases it. Returns true if torn down.
func (r *ActorRegistry) ReleaseClone(holder Scope, name string) bool {
	r.mu.Lock()
	h := r.detachLocked(holder, name)
	r.mu.Unlock()

	if h == nil {
		return false
	}
	r.teardown(h)
	return true
}

// ReleaseAll drops every clone reference held by scopes owned by owner
// (e.g. PlayerScope on disconnect). Returns number of clones torn down.
func (r *ActorRegistry) ReleaseAll(owner Scope) int {
	r.mu.Lock()
	var dead []*ActorHandle
	for holder, names := range r.held {
		if !owner.Owns(holder) {
			continue
		}
		for n := range names {
			if h := r.detachLocked(holder, n); h != nil {
				dead = append(dead, h)
			}
		}
	}
	r.mu.Unlock()

	for _, h := range dead {
		r.teardown(h)
	}
	return len(dead)
}

// ReleaseQuest drops every clone reference held for questID by any player
// or group. Used on quest unload.
func (r *ActorRegistry) ReleaseQuest(questID int32) int {
	r.mu.Lock()
	var dead []*ActorHandle
	for holder, names := range r.held {
		if holder.Quest != questID {
			continue
		}
		for n := range names {
			if h := r.detachLocked(holder, n); h != nil {
				dead = append(dead, h)
			}
		}
	}
	r.mu.Unlock()

	for _, h := range dead {
		r.teardown(h)
	}
	return len(dead)
}

// Discard tears a clone down for all of its holders at once.
// Returns false if it was already gone.
func (r *ActorRegistry) Discard(h *ActorHandle) bool {
	if h == nil || !h.clone {
		return false
	}

	r.mu.Lock()
	for holder := range h.holders {
		if r.held[holder][h.name] == h {
			r.detachLocked(holder, h.name)
		} else {
			delete(h.holders, holder)
		}
	}
	key := cloneKey{name: h.name, owner: h.owner}
	if r.clones[key] == h {
		delete(r.clones, key)
	}
	r.mu.Unlock()

	if h.dead.Load() {
		return false
	}
	r.teardown(h)
	return true
}

// detachLocked removes holder's reference. Returns the handle if it has no
// holders left and must be torn down. Caller holds r.mu.
func (r *ActorRegistry) detachLocked(holder Scope, name string) *ActorHandle {
	names := r.held[holder]
	h, ok := names[name]
	if !ok {
		return nil
	}
	delete(names, name)
	if len(names) == 0 {
		delete(r.held, holder)
	}

	delete(h.holders, holder)
	if len(h.holders) > 0 {
		return nil
	}

	key := cloneKey{name: h.name, owner: h.owner}
	if r.clones[key] == h {
		delete(r.clones, key)
	}
	return h
}

// teardown deletes the clone entity and revokes its hooks and timers.
func (r *ActorRegistry) teardown(h *ActorHandle) {
	h.mu.Lock()
	already := h.dead.Swap(true)
	if !already {
		h.entity.Delete()
	}
	h.mu.Unlock()

	if already {
		return
	}

	hooks := h.HookScope()
	revoked := r.bus.UnregisterScope(hooks)
	cancelled := r.timers.CancelScope(hooks)
	r.tornDown.Add(1)

	slog.Debug("clone actor torn down",
		"actor", h.name,
		"objectID", h.entity.ObjectID(),
		"hooksRevoked", revoked,
		"timersCancelled", cancelled)
}

// Holders returns number of holders referencing a clone.
func (r *ActorRegistry) Holders(h *ActorHandle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(h.holders)
}

// CloneCount returns number of living clones.
func (r *ActorRegistry) CloneCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clones)
}

// HeldBy returns number of clone references held by scopes owned by owner.
func (r *ActorRegistry) HeldBy(owner Scope) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for holder, names := range r.held {
		if owner.Owns(holder) {
			n += len(names)
		}
	}
	return n
}

// Stats returns total clones created and torn down.
func (r *ActorRegistry) Stats() (created, tornDown int64) {
	return r.created.Load(), r.tornDown.Load()
}

// FindOrSpawn returns a factory that looks the actor up by name and realm
// and spawns a default one if the world has none.
func FindOrSpawn(w World, desc model.NpcDescriptor) ActorFactory {
	return func() (model.Entity, error) {
		if found := w.FindEntitiesByName(desc.Name, desc.Realm); len(found) > 0 {
			return found[0], nil
		}

		slog.Warn("actor not found in world, creating default",
			"actor", desc.Name,
			"realm", desc.Realm.String())

		e, err := w.SpawnEntity(desc)
		if err != nil {
			return nil, fmt.Errorf("spawning %q: %w", desc.Name, err)
		}
		if err := e.AddToWorld(); err != nil {
			return nil, fmt.Errorf("adding %q to world: %w", desc.Name, err)
		}
		return e, nil
	}
}

// SpawnClone returns a factory that builds and places a fresh clone.
func SpawnClone(w World, desc model.NpcDescriptor) ActorFactory {
	return func() (model.Entity, error) {
		e, err := w.SpawnClone(desc)
		if err != nil {
			return nil, fmt.Errorf("spawning clone %q: %w", desc.Name, err)
		}
		if err := e.AddToWorld(); err != nil {
			return nil, fmt.Errorf("adding clone %q to world: %w", desc.Name, err)
		}
		return e, nil
	}
}
