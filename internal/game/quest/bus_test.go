package quest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DispatchOrder(t *testing.T) {
	b := NewBus()
	var calls []string

	record := func(name string) Handler {
		return func(context.Context, *Event) error {
			calls = append(calls, name)
			return nil
		}
	}

	b.Register(Global, EventInteract, NoScope, 0, record("global"))
	b.Register(42, EventInteract, NoScope, 1, record("first"))
	b.Register(42, EventInteract, NoScope, 2, record("second"))
	b.Register(43, EventInteract, NoScope, 3, record("other"))
	b.Register(42, EventWhisper, NoScope, 4, record("whisper"))

	res := b.Dispatch(context.Background(), &Event{Kind: EventInteract, Entity: 42})

	assert.Equal(t, []string{"first", "second", "global"}, calls)
	assert.Equal(t, 3, res.Handled)
	assert.Zero(t, res.Faults)
}

func TestBus_FaultIsolation(t *testing.T) {
	b := NewBus()
	reached := false

	b.Register(7, EventGiveItem, NoScope, 1, func(context.Context, *Event) error {
		return errors.New("boom")
	})
	b.Register(7, EventGiveItem, NoScope, 2, func(context.Context, *Event) error {
		panic("script bug")
	})
	b.Register(7, EventGiveItem, NoScope, 3, func(context.Context, *Event) error {
		reached = true
		return nil
	})

	res := b.Dispatch(context.Background(), &Event{Kind: EventGiveItem, Entity: 7})

	assert.True(t, reached, "handler after faulting ones must run")
	assert.Equal(t, 3, res.Handled)
	assert.Equal(t, 2, res.Faults)
}

func TestBus_MutationDuringDispatch(t *testing.T) {
	b := NewBus()
	var lateCalls, selfCalls int

	var self Registration
	self = b.Register(9, EventInteract, NoScope, 1, func(context.Context, *Event) error {
		selfCalls++
		b.Unregister(self)
		b.Register(9, EventInteract, NoScope, 1, func(context.Context, *Event) error {
			lateCalls++
			return nil
		})
		return nil
	})
	b.Register(9, EventInteract, NoScope, 2, func(context.Context, *Event) error { return nil })

	res := b.Dispatch(context.Background(), &Event{Kind: EventInteract, Entity: 9})
	assert.Equal(t, 2, res.Handled, "snapshot is fixed at dispatch start")
	assert.Equal(t, 1, selfCalls)
	assert.Zero(t, lateCalls)

	b.Dispatch(context.Background(), &Event{Kind: EventInteract, Entity: 9})
	assert.Equal(t, 1, selfCalls, "unregistered handler must not run again")
	assert.Equal(t, 1, lateCalls)
}

func TestBus_GlobalEventSkipsEntityLookup(t *testing.T) {
	b := NewBus()
	n := 0
	b.Register(Global, EventPlayerQuit, NoScope, 0, func(context.Context, *Event) error {
		n++
		return nil
	})

	res := b.Dispatch(context.Background(), &Event{Kind: EventPlayerQuit, Entity: Global})
	assert.Equal(t, 1, res.Handled)
	assert.Equal(t, 1, n, "global handlers run once even for Global entity")
}

func TestBus_Unregister(t *testing.T) {
	b := NewBus()
	noop := func(context.Context, *Event) error { return nil }

	r := b.Register(1, EventInteract, NoScope, 1, noop)
	require.True(t, r.Valid())
	assert.Equal(t, 1, b.Count(1, EventInteract))

	assert.True(t, b.Unregister(r))
	assert.False(t, b.Unregister(r), "second unregister is a no-op")
	assert.Zero(t, b.Count(1, EventInteract))
	assert.Zero(t, b.Len())

	assert.False(t, Registration{}.Valid())
}

func TestBus_UnregisterScope(t *testing.T) {
	b := NewBus()
	noop := func(context.Context, *Event) error { return nil }

	player := PlayerScope(42)
	b.Register(Global, EventEnemyKilled, player.ForQuest(1), 1, noop)
	b.Register(Global, EventEnemyKilled, player.ForQuest(2), 2, noop)
	b.Register(Global, EventEnemyKilled, PlayerScope(43).ForQuest(1), 1, noop)
	b.Register(Global, EventEnemyKilled, NoScope, 1, noop)

	assert.Equal(t, 2, b.CountScope(player))
	assert.Equal(t, 1, b.UnregisterScope(player.ForQuest(2)))
	assert.Equal(t, 1, b.UnregisterScope(player))
	assert.Zero(t, b.CountScope(player))
	assert.Zero(t, b.UnregisterScope(NoScope), "script-level registrations are not scope-revocable")
	assert.Equal(t, 2, b.Len())
}

func TestBus_UnregisterOwner(t *testing.T) {
	b := NewBus()
	noop := func(context.Context, *Event) error { return nil }

	b.Register(1, EventInteract, NoScope, 7, noop)
	b.Register(2, EventWhisper, ActorScope(2), 7, noop)
	b.Register(1, EventInteract, NoScope, 8, noop)

	assert.Equal(t, 2, b.UnregisterOwner(7))
	assert.Equal(t, 1, b.Count(1, EventInteract))
}
