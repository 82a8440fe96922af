package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlayer(t *testing.T) {
	tests := []struct {
		name    string
		pname   string
		level   int32
		wantErr bool
	}{
		{"valid", "Tester", 5, false},
		{"max level", "Tester", MaxPlayerLevel, false},
		{"empty name", "", 5, true},
		{"level zero", "Tester", 0, true},
		{"above cap", "Tester", MaxPlayerLevel + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPlayer(1, 10, tt.pname, tt.level, RealmAlbion, 2)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(10), p.CharacterID())
			assert.Equal(t, tt.level, p.Level())
			assert.Equal(t, RealmAlbion, p.Realm())
			assert.Equal(t, int64(10), p.Inventory().OwnerID())
		})
	}
}

func TestPlayer_Money(t *testing.T) {
	p, err := NewPlayer(1, 1, "Tester", 5, RealmAlbion, 2)
	require.NoError(t, err)

	p.AddMoney(500)
	require.NoError(t, p.RemoveMoney(200))
	assert.Equal(t, int64(300), p.Money())

	err = p.RemoveMoney(301)
	require.ErrorIs(t, err, ErrNotEnoughMoney)
	assert.Equal(t, int64(300), p.Money(), "failed payment leaves the purse untouched")

	p.AddMoney(-1000)
	assert.Zero(t, p.Money())
}

func TestPlayer_Experience(t *testing.T) {
	p, err := NewPlayer(1, 1, "Tester", 5, RealmAlbion, 2)
	require.NoError(t, err)

	p.GainExperience(100)
	p.GainExperience(-30)
	assert.Equal(t, int64(70), p.Experience())

	p.GainExperience(-500)
	assert.Zero(t, p.Experience())
}

func TestPlayer_SetLevel(t *testing.T) {
	p, err := NewPlayer(1, 1, "Tester", 5, RealmAlbion, 2)
	require.NoError(t, err)

	require.NoError(t, p.SetLevel(12))
	assert.Equal(t, int32(12), p.Level())
	assert.Error(t, p.SetLevel(0))
	assert.Equal(t, int32(12), p.Level())
}

func TestPlayer_MessageBacklog(t *testing.T) {
	p, err := NewPlayer(1, 1, "Tester", 5, RealmAlbion, 2)
	require.NoError(t, err)
	assert.Empty(t, p.LastMessage())

	for i := range maxMessageBacklog + 10 {
		p.SendMessage(fmt.Sprintf("msg %d", i))
	}

	msgs := p.Messages()
	assert.Len(t, msgs, maxMessageBacklog)
	assert.Equal(t, "msg 10", msgs[0])
	assert.Equal(t, fmt.Sprintf("msg %d", maxMessageBacklog+9), p.LastMessage())
}
