package quest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmquest/internal/model"
)

func TestGuard_LevelBoundaries(t *testing.T) {
	def := &Definition{ID: 1, Name: "Window", MinLevel: 5, MaxLevel: 10}
	g := NewGuard(NewStore())

	tests := []struct {
		level  int32
		want   bool
		reason Reason
	}{
		{4, false, ReasonLevelTooLow},
		{5, true, ReasonNone},
		{10, true, ReasonNone},
		{11, false, ReasonLevelTooHigh},
	}
	for _, tt := range tests {
		p := newTestPlayer(t, 1, "Lvl", tt.level)
		// Повторные вызовы дают тот же ответ
		for range 3 {
			assert.Equal(t, tt.want, g.CanStart(p, def), "level %d", tt.level)
		}

		err := g.Check(p, def)
		if tt.want {
			assert.NoError(t, err)
			continue
		}
		var inel *IneligibleError
		require.ErrorAs(t, err, &inel)
		assert.Equal(t, tt.reason, inel.Reason)
		assert.ErrorIs(t, err, ErrIneligible)
	}
}

func TestGuard_NoUpperBound(t *testing.T) {
	def := &Definition{ID: 1, Name: "Open", MinLevel: 1}
	g := NewGuard(NewStore())
	assert.True(t, g.CanStart(newTestPlayer(t, 1, "Vet", model.MaxPlayerLevel), def))
}

func TestGuard_FinishedQuestRejected(t *testing.T) {
	store := NewStore()
	g := NewGuard(store)
	def := &Definition{ID: 2, Name: "Once", MinLevel: 1}
	p := newTestPlayer(t, 1, "Hero", 5)

	inst := store.GetOrCreate(p.CharacterID(), def.ID)
	inst.start(1, time.Now())
	assertReason(t, g.Check(p, def), ReasonAlreadyActive)

	require.True(t, inst.finishFrom(1, time.Now()))
	assertReason(t, g.Check(p, def), ReasonMaxCompletions)

	repeatable := &Definition{ID: 2, Name: "Twice", MinLevel: 1, MaxCompletions: 2}
	assert.True(t, g.CanStart(p, repeatable))
}

func TestGuard_Prerequisites(t *testing.T) {
	store := NewStore()
	g := NewGuard(store)
	def := &Definition{ID: 3, Name: "Sequel", Prerequisites: []int32{2}}
	p := newTestPlayer(t, 1, "Hero", 5)

	assertReason(t, g.Check(p, def), ReasonPrerequisite)

	pre := store.GetOrCreate(p.CharacterID(), 2)
	pre.start(1, time.Now())
	assertReason(t, g.Check(p, def), ReasonPrerequisite)

	require.True(t, pre.finishFrom(1, time.Now()))
	assert.NoError(t, g.Check(p, def))
}

func TestGuard_AccessAndOverride(t *testing.T) {
	g := NewGuard(NewStore())
	p := newTestPlayer(t, 1, "Hero", 5)

	inaccessible := &Definition{ID: 4, Name: "Zone", Accessible: func(p *model.Player) bool { return p.ZoneID() == 7 }}
	assertReason(t, g.Check(p, inaccessible), ReasonInaccessible)
	p.SetZoneID(7)
	assert.NoError(t, g.Check(p, inaccessible))

	classOnly := &Definition{ID: 5, Name: "Class", Override: func(p *model.Player) bool { return p.ClassID() == 99 }}
	assertReason(t, g.Check(p, classOnly), ReasonOverride)
	assertReason(t, g.Revalidate(p, classOnly), ReasonOverride)
}

func TestGuard_SideEffectFree(t *testing.T) {
	store := NewStore()
	g := NewGuard(store)
	p := newTestPlayer(t, 1, "Hero", 5)

	g.CanStart(p, &Definition{ID: 6, Name: "Peek", Prerequisites: []int32{1}})
	assert.False(t, store.Loaded(p.CharacterID()), "guard must not create instances")
}

func assertReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var inel *IneligibleError
	if !errors.As(err, &inel) {
		t.Fatalf("expected IneligibleError(%s), got %v", want, err)
	}
	assert.Equal(t, want, inel.Reason, inel.Error())
}
