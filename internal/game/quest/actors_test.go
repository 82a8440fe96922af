package quest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/realmquest/internal/model"
	"github.com/udisondev/realmquest/internal/world"
)

func newTestRegistry(t *testing.T) (*ActorRegistry, *Bus, *Scheduler, *world.World) {
	t.Helper()
	bus := NewBus()
	timers := NewScheduler()
	t.Cleanup(timers.Shutdown)
	return NewActorRegistry(bus, timers), bus, timers, world.New()
}

func TestActorRegistry_ResolveSingletonOnce(t *testing.T) {
	r, _, _, w := newTestRegistry(t)
	existing := spawnNpc(t, w, "Master Frederick")

	var calls atomic.Int32
	factory := func() (model.Entity, error) {
		calls.Add(1)
		return FindOrSpawn(w, model.NpcDescriptor{Name: "Master Frederick", Realm: model.RealmAlbion})()
	}

	h1, err := r.ResolveSingleton("frederick", factory)
	require.NoError(t, err)
	h2, err := r.ResolveSingleton("frederick", factory)
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, existing.ObjectID(), h1.ObjectID(), "existing world NPC is reused")
	assert.False(t, h1.IsClone())

	// Внешнее удаление не приводит к повторному созданию
	existing.Delete()
	h3, err := r.ResolveSingleton("frederick", factory)
	require.NoError(t, err)
	assert.Same(t, h1, h3)
	assert.Equal(t, int32(1), calls.Load())
}

func TestActorRegistry_ResolveSingletonRetriesFailure(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)

	fail := true
	factory := func() (model.Entity, error) {
		if fail {
			return nil, errors.New("not yet")
		}
		return model.NewNpc(1, model.NpcDescriptor{Name: "Dalikor"}, nil), nil
	}

	_, err := r.ResolveSingleton("dalikor", factory)
	require.Error(t, err)
	assert.Nil(t, r.Singleton("dalikor"))

	fail = false
	h, err := r.ResolveSingleton("dalikor", factory)
	require.NoError(t, err)
	assert.Equal(t, "dalikor", h.Name())
}

func TestFindOrSpawn_CreatesDefault(t *testing.T) {
	w := world.New()
	desc := model.NpcDescriptor{Name: "Briedi", Realm: model.RealmMidgard}

	e, err := FindOrSpawn(w, desc)()
	require.NoError(t, err)
	assert.Equal(t, "Briedi", e.Name())

	found := w.FindEntitiesByName("briedi", model.RealmMidgard)
	require.Len(t, found, 1)
	assert.Equal(t, e.ObjectID(), found[0].ObjectID())

	again, err := FindOrSpawn(w, desc)()
	require.NoError(t, err)
	assert.Equal(t, e.ObjectID(), again.ObjectID())
}

func TestActorRegistry_SingleCloneForGroup(t *testing.T) {
	r, _, _, w := newTestRegistry(t)

	const members = 8
	const questID int32 = 3
	owner := GroupScope(77).ForQuest(questID)

	holders := make([]Scope, members)
	for i := range holders {
		holders[i] = PlayerScope(int64(i + 1)).ForQuest(questID)
	}

	var built atomic.Int32
	factory := func() (model.Entity, error) {
		built.Add(1)
		time.Sleep(time.Millisecond) // расширяем окно гонки
		return SpawnClone(w, model.NpcDescriptor{Name: "Master Dunwyn"})()
	}

	handles := make([]*ActorHandle, members)
	var g errgroup.Group
	for i := range members {
		g.Go(func() error {
			peers := make([]Scope, 0, members-1)
			for j, s := range holders {
				if j != i {
					peers = append(peers, s)
				}
			}
			h, _, err := r.AcquireClone(CloneRequest{
				Name:    "dunwyn",
				Holder:  holders[i],
				Peers:   peers,
				Owner:   owner,
				Factory: factory,
			})
			handles[i] = h
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), built.Load(), "exactly one clone constructed")
	for _, h := range handles[1:] {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, members, r.Holders(handles[0]))
	assert.Equal(t, 1, r.CloneCount())

	// Освобождение всеми, кроме последнего, не удаляет клона
	var tornDown atomic.Int32
	var rg errgroup.Group
	for i := range members {
		rg.Go(func() error {
			if r.ReleaseClone(holders[i], "dunwyn") {
				tornDown.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, rg.Wait())

	assert.Equal(t, int32(1), tornDown.Load(), "exactly one teardown")
	assert.False(t, handles[0].IsAlive())
	assert.Zero(t, r.CloneCount())
	assert.Empty(t, w.FindEntitiesByName("Master Dunwyn", model.RealmNone))

	created, down := r.Stats()
	assert.Equal(t, int64(1), created)
	assert.Equal(t, int64(1), down)
}

func TestActorRegistry_CloneRefcount(t *testing.T) {
	r, _, _, w := newTestRegistry(t)
	factory := SpawnClone(w, model.NpcDescriptor{Name: "Briedi"})

	a := PlayerScope(1).ForQuest(9)
	b := PlayerScope(2).ForQuest(9)

	h, created, err := r.AcquireClone(CloneRequest{Name: "briedi", Holder: a, Factory: factory})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, a, h.Owner(), "ungrouped clone is owned by its holder")

	shared, created, err := r.AcquireClone(CloneRequest{Name: "briedi", Holder: b, Peers: []Scope{a}, Factory: factory})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, h, shared)

	again, created, err := r.AcquireClone(CloneRequest{Name: "briedi", Holder: a, Factory: factory})
	require.NoError(t, err)
	assert.False(t, created, "holder re-acquiring keeps its clone")
	assert.Same(t, h, again)
	assert.Equal(t, 2, r.Holders(h))

	assert.False(t, r.ReleaseClone(a, "briedi"))
	assert.True(t, h.IsAlive())
	assert.False(t, r.ReleaseClone(a, "briedi"), "double release is a no-op")
	assert.True(t, r.ReleaseClone(b, "briedi"))
	assert.False(t, h.IsAlive())
}

func TestActorRegistry_TeardownRevokesHooksAndTimers(t *testing.T) {
	r, bus, timers, w := newTestRegistry(t)

	h, _, err := r.AcquireClone(CloneRequest{
		Name:    "briedi",
		Holder:  PlayerScope(1).ForQuest(2),
		Factory: SpawnClone(w, model.NpcDescriptor{Name: "Briedi"}),
	})
	require.NoError(t, err)

	bus.Register(h.ObjectID(), EventInteract, h.HookScope(), 2, func(context.Context, *Event) error { return nil })
	var fired atomic.Bool
	timers.Schedule(h.HookScope(), h, 50*time.Millisecond, func() { fired.Store(true) })

	require.Equal(t, 1, bus.CountScope(h.HookScope()))
	require.Equal(t, 1, timers.ActiveForScope(h.HookScope()))

	assert.Equal(t, 1, r.ReleaseAll(PlayerScope(1)))
	assert.Zero(t, bus.CountScope(h.HookScope()))
	assert.Zero(t, timers.ActiveForScope(h.HookScope()))
	assert.Zero(t, r.HeldBy(PlayerScope(1)))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())

	err = h.Do(func(model.Entity) error { return nil })
	assert.ErrorIs(t, err, ErrActorDead)
}

func TestActorRegistry_StaleCloneReplaced(t *testing.T) {
	r, _, _, w := newTestRegistry(t)
	holder := PlayerScope(1).ForQuest(4)
	factory := SpawnClone(w, model.NpcDescriptor{Name: "Recruit"})

	h1, _, err := r.AcquireClone(CloneRequest{Name: "recruit", Holder: holder, Factory: factory})
	require.NoError(t, err)
	h1.Entity().Delete() // убит снаружи

	h2, created, err := r.AcquireClone(CloneRequest{Name: "recruit", Holder: holder, Factory: factory})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotSame(t, h1, h2)
	assert.False(t, h1.IsAlive())
	assert.Equal(t, 1, r.CloneCount())
}

func TestActorRegistry_FactoryErrorNotCached(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	holder := PlayerScope(1).ForQuest(4)

	_, _, err := r.AcquireClone(CloneRequest{
		Name:    "ghost",
		Holder:  holder,
		Factory: func() (model.Entity, error) { return nil, errors.New("no template") },
	})
	require.Error(t, err)
	assert.Zero(t, r.CloneCount())
	assert.Nil(t, r.CloneFor(holder, "ghost"))
}

func TestActorRegistry_DiscardAndReleaseQuest(t *testing.T) {
	r, _, _, w := newTestRegistry(t)
	factory := SpawnClone(w, model.NpcDescriptor{Name: "Dunwyn"})

	a := PlayerScope(1).ForQuest(5)
	b := PlayerScope(2).ForQuest(5)
	h, _, err := r.AcquireClone(CloneRequest{Name: "dunwyn", Holder: a, Factory: factory})
	require.NoError(t, err)
	_, _, err = r.AcquireClone(CloneRequest{Name: "dunwyn", Holder: b, Peers: []Scope{a}, Factory: factory})
	require.NoError(t, err)

	assert.True(t, r.Discard(h))
	assert.False(t, r.Discard(h))
	assert.False(t, h.IsAlive())
	assert.Nil(t, r.CloneFor(a, "dunwyn"))
	assert.Nil(t, r.CloneFor(b, "dunwyn"))

	_, _, err = r.AcquireClone(CloneRequest{Name: "dunwyn", Holder: a, Factory: factory})
	require.NoError(t, err)
	_, _, err = r.AcquireClone(CloneRequest{Name: "other", Holder: PlayerScope(1).ForQuest(6), Factory: factory})
	require.NoError(t, err)

	assert.Equal(t, 1, r.ReleaseQuest(5))
	assert.Equal(t, 1, r.CloneCount())
}
