package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocation_Distance(t *testing.T) {
	a := NewLocation(1, 0, 0, 0, 0)
	b := a.Offset(3, 4)

	assert.Equal(t, int64(25), a.DistanceSquared(b))
	assert.True(t, a.InRange(b, 5))
	assert.False(t, a.InRange(b, 4))
}

func TestLocation_OtherRegionOutOfRange(t *testing.T) {
	a := NewLocation(1, 0, 0, 0, 0)
	b := NewLocation(2, 0, 0, 0, 0)

	assert.False(t, a.InRange(b, 1<<30))
}

func TestRealm_String(t *testing.T) {
	assert.Equal(t, "Albion", RealmAlbion.String())
	assert.Equal(t, "Midgard", RealmMidgard.String())
	assert.Equal(t, "Hibernia", RealmHibernia.String())
	assert.Equal(t, "None", RealmNone.String())
}
