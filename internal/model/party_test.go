package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPartyPlayer -- хелпер для создания тестового игрока.
func newTestPartyPlayer(t *testing.T, objectID uint32, name string) *Player {
	t.Helper()
	p, err := NewPlayer(objectID, int64(objectID), name, 20, RealmAlbion, 2)
	require.NoError(t, err, "NewPlayer(%d, %s)", objectID, name)
	return p
}

func TestNewParty(t *testing.T) {
	leader := newTestPartyPlayer(t, 1, "Leader")
	party := NewParty(100, leader)

	assert.Equal(t, int32(100), party.ID())
	assert.Equal(t, leader, party.Leader())
	assert.Equal(t, 1, party.MemberCount())
	assert.Same(t, party, leader.Party())
}

func TestParty_AddMember(t *testing.T) {
	tests := []struct {
		name      string
		addCount  int
		wantErr   bool
		wantCount int
	}{
		{
			name:      "add one member",
			addCount:  1,
			wantCount: 2,
		},
		{
			name:      "fill to max",
			addCount:  MaxPartyMembers - 1,
			wantCount: MaxPartyMembers,
		},
		{
			name:      "overflow",
			addCount:  MaxPartyMembers,
			wantErr:   true,
			wantCount: MaxPartyMembers,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			party := NewParty(1, newTestPartyPlayer(t, 1, "Leader"))

			var lastErr error
			for i := range tt.addCount {
				lastErr = party.AddMember(newTestPartyPlayer(t, uint32(10+i), "Member"))
			}

			if tt.wantErr {
				assert.Error(t, lastErr)
			} else {
				assert.NoError(t, lastErr)
			}
			assert.Equal(t, tt.wantCount, party.MemberCount())
		})
	}
}

func TestParty_AddMember_Duplicate(t *testing.T) {
	leader := newTestPartyPlayer(t, 1, "Leader")
	party := NewParty(1, leader)

	require.Error(t, party.AddMember(leader))
	assert.Equal(t, 1, party.MemberCount())
}

func TestParty_RemoveMember(t *testing.T) {
	leader := newTestPartyPlayer(t, 1, "Leader")
	member := newTestPartyPlayer(t, 2, "Member")
	party := NewParty(1, leader)
	require.NoError(t, party.AddMember(member))

	// Уход лидера передаёт лидерство следующему
	assert.True(t, party.RemoveMember(leader.ObjectID()))
	assert.Equal(t, member, party.Leader())
	assert.Nil(t, leader.Party())

	assert.False(t, party.RemoveMember(999))
	assert.Equal(t, []*Player{member}, party.Members())
}

func TestParty_ConcurrentMembers(t *testing.T) {
	party := NewParty(1, newTestPartyPlayer(t, 1, "Leader"))

	var wg sync.WaitGroup
	for i := range MaxPartyMembers - 1 {
		p := newTestPartyPlayer(t, uint32(100+i), "Member")
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = party.AddMember(p)
		}()
		go func() {
			defer wg.Done()
			_ = party.Members()
		}()
	}
	wg.Wait()

	assert.Equal(t, MaxPartyMembers, party.MemberCount())
}
