package quest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Handler reacts to a dispatched event. A returned error (or a panic) is
// logged at the bus boundary and does not stop dispatch.
type Handler func(ctx context.Context, e *Event) error

// Registration identifies one bus handler. Zero value is invalid.
type Registration struct {
	id     uint64
	target uint32
	kind   EventKind
}

// Valid reports whether r refers to a registration.
func (r Registration) Valid() bool { return r.id != 0 }

type busKey struct {
	target uint32
	kind   EventKind
}

type registration struct {
	id      uint64
	key     busKey
	scope   Scope
	owner   int32 // quest ID that registered it (0 = engine)
	handler Handler
}

// DispatchResult summarizes one Dispatch call.
type DispatchResult struct {
	Handled int // handlers invoked
	Faults  int // handlers that returned an error or panicked
}

// Bus maps (entity, event kind) to ordered handler lists.
// Dispatch is synchronous on the caller's goroutine; different entities'
// events may be dispatched concurrently.
type Bus struct {
	mu      sync.RWMutex
	byKey   map[busKey][]*registration
	byID    map[uint64]*registration
	counter atomic.Uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		byKey: make(map[busKey][]*registration, 64),
		byID:  make(map[uint64]*registration, 64),
	}
}

// Register adds handler for (target, kind). target may be Global.
// scope ties the registration to an owner for bulk removal; owner is the
// quest ID (0 for engine hooks).
func (b *Bus) Register(target uint32, kind EventKind, scope Scope, owner int32, h Handler) Registration {
	reg := &registration{
		id:      b.counter.Add(1),
		key:     busKey{target: target, kind: kind},
		scope:   scope,
		owner:   owner,
		handler: h,
	}

	b.mu.Lock()
	b.byKey[reg.key] = append(b.byKey[reg.key], reg)
	b.byID[reg.id] = reg
	b.mu.Unlock()

	return Registration{id: reg.id, target: target, kind: kind}
}

// Unregister removes a registration. Returns false if it was already gone.
func (b *Bus) Unregister(r Registration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, ok := b.byID[r.id]
	if !ok {
		return false
	}
	b.removeLocked(reg)
	return true
}

// UnregisterScope removes every registration owned by scope (see Scope.Owns).
// Returns number removed.
func (b *Bus) UnregisterScope(scope Scope) int {
	if scope.IsZero() {
		return 0
	}
	return b.removeWhere(func(r *registration) bool { return scope.Owns(r.scope) })
}

// UnregisterOwner removes every registration made by a quest.
func (b *Bus) UnregisterOwner(questID int32) int {
	return b.removeWhere(func(r *registration) bool { return r.owner == questID })
}

func (b *Bus) removeWhere(match func(*registration) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	var victims []*registration
	for _, reg := range b.byID {
		if match(reg) {
			victims = append(victims, reg)
		}
	}
	for _, reg := range victims {
		b.removeLocked(reg)
	}
	return len(victims)
}

func (b *Bus) removeLocked(reg *registration) {
	delete(b.byID, reg.id)

	list := b.byKey[reg.key]
	for i, r := range list {
		if r.id != reg.id {
			continue
		}
		// Копируем, чтобы не портить снапшоты, которые сейчас итерируются
		next := make([]*registration, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.byKey, reg.key)
		} else {
			b.byKey[reg.key] = next
		}
		return
	}
}

// Dispatch delivers e to handlers registered on (e.Entity, e.Kind), then to
// Global handlers for e.Kind, each list in registration order.
// Handlers run against a snapshot, so they may register or unregister freely.
func (b *Bus) Dispatch(ctx context.Context, e *Event) DispatchResult {
	b.mu.RLock()
	var snapshot []*registration
	if e.Entity != Global {
		snapshot = append(snapshot, b.byKey[busKey{target: e.Entity, kind: e.Kind}]...)
	}
	snapshot = append(snapshot, b.byKey[busKey{target: Global, kind: e.Kind}]...)
	b.mu.RUnlock()

	var res DispatchResult
	for _, reg := range snapshot {
		res.Handled++
		if err := b.invoke(ctx, reg, e); err != nil {
			res.Faults++
			slog.Error("quest handler failed",
				"event", e.Kind.String(),
				"entity", e.Entity,
				"questID", reg.owner,
				"characterID", e.CharacterID(),
				"error", err)
		}
	}
	return res
}

// invoke runs a handler, converting a panic into an error.
func (b *Bus) invoke(ctx context.Context, reg *registration, e *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return reg.handler(ctx, e)
}

// Count returns number of handlers on (target, kind).
func (b *Bus) Count(target uint32, kind EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byKey[busKey{target: target, kind: kind}])
}

// CountScope returns number of registrations owned by scope.
func (b *Bus) CountScope(scope Scope) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, reg := range b.byID {
		if scope.Owns(reg.scope) {
			n++
		}
	}
	return n
}

// Len returns total number of registrations.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
