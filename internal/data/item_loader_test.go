package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmquest/internal/model"
)

func TestItemTable_LoadItemTemplates(t *testing.T) {
	table := NewItemTable()
	require.NoError(t, table.LoadItemTemplates(filepath.Join("..", "..", "data", "items.yaml")))

	head := table.Get(1201)
	require.NotNil(t, head)
	assert.Equal(t, "Queen Tatiana's Head", head.Name)
	assert.Equal(t, model.ItemTypeQuestItem, head.Type)
	assert.False(t, head.Placeholder)

	fur := table.Get(4011)
	require.NotNil(t, fur)
	assert.True(t, fur.Stackable)

	assert.Equal(t, model.ItemTypeJewel, table.Get(1204).Type)
	assert.Equal(t, model.ItemTypeArmor, table.Get(1013).Type)
}

func TestItemTable_MissingFile(t *testing.T) {
	table := NewItemTable()
	require.NoError(t, table.LoadItemTemplates(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Zero(t, table.Count())
}

func TestItemTable_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items: {broken"), 0o644))

	assert.Error(t, NewItemTable().LoadItemTemplates(path))
}

func TestItemTable_ResolvePlaceholder(t *testing.T) {
	table := NewItemTable()
	table.Register(&model.ItemTemplate{ItemID: 1, Name: "Sack of Supplies"})

	assert.Equal(t, "Sack of Supplies", table.Resolve(1, "ignored").Name)

	ph := table.Resolve(77, "")
	assert.True(t, ph.Placeholder)
	assert.Equal(t, "item_77", ph.Name)
	assert.Equal(t, model.ItemTypeQuestItem, ph.Type)
	assert.Same(t, ph, table.Resolve(77, "other"), "placeholder registered once")
	assert.Equal(t, 2, table.Count())
}

func TestParseItemType(t *testing.T) {
	assert.Equal(t, model.ItemTypeWeapon, parseItemType("weapon"))
	assert.Equal(t, model.ItemTypeEtcItem, parseItemType("potion"))
}
