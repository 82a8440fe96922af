package model

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlacement records placements without a real world.
type fakePlacement struct {
	mu      sync.Mutex
	placed  map[uint32]Entity
	failErr error
}

func newFakePlacement() *fakePlacement {
	return &fakePlacement{placed: make(map[uint32]Entity)}
}

func (f *fakePlacement) Place(e Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.placed[e.ObjectID()] = e
	return nil
}

func (f *fakePlacement) Remove(objectID uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.placed, objectID)
}

func (f *fakePlacement) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func TestNpc_Lifecycle(t *testing.T) {
	world := newFakePlacement()
	n := NewNpc(100, NpcDescriptor{Name: "Master Dunwyn", Realm: RealmAlbion, Level: 14}, world)

	assert.True(t, n.IsAlive())
	assert.False(t, n.InWorld())

	require.NoError(t, n.AddToWorld())
	require.NoError(t, n.AddToWorld(), "second add is a no-op")
	assert.True(t, n.InWorld())
	assert.Equal(t, 1, world.count())

	n.Delete()
	n.Delete()
	assert.False(t, n.IsAlive())
	assert.Zero(t, world.count())

	assert.Error(t, n.AddToWorld(), "deleted npc cannot come back")
}

func TestNpc_AddToWorldWithoutPlacement(t *testing.T) {
	n := NewNpc(1, NpcDescriptor{Name: "Orphan"}, nil)
	assert.ErrorIs(t, n.AddToWorld(), ErrNotPlaced)
}

func TestNpc_PlaceFailure(t *testing.T) {
	world := newFakePlacement()
	world.failErr = errors.New("object id taken")
	n := NewNpc(1, NpcDescriptor{Name: "Queen Tatiana"}, world)

	require.Error(t, n.AddToWorld())
	assert.False(t, n.InWorld())
}

func TestNpc_DieKeepsCorpse(t *testing.T) {
	world := newFakePlacement()
	n := NewNpc(1, NpcDescriptor{Name: "young wolf"}, world)
	require.NoError(t, n.AddToWorld())

	n.Die()
	assert.False(t, n.IsAlive())
	assert.True(t, n.InWorld())
}

func TestNpc_Behaviour(t *testing.T) {
	n := NewNpc(1, NpcDescriptor{Name: "Queen Tatiana", Aggressive: false}, nil)
	p, err := NewPlayer(2, 2, "Tester", 5, RealmAlbion, 2)
	require.NoError(t, err)

	n.SetAggressive(true)
	n.Follow(p.ObjectID())
	n.Emote("spell")
	n.Emote("bind")
	n.SayTo(p, "Good luck {player}.")

	assert.True(t, n.Aggressive())
	assert.Equal(t, p.ObjectID(), n.FollowTarget())
	assert.Equal(t, []string{"spell", "bind"}, n.Emotes())
	assert.Equal(t, `Queen Tatiana says, "Good luck {player}."`, p.LastMessage())
}
