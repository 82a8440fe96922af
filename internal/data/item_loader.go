// Package data holds static content tables consumed by the quest engine.
package data

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/realmquest/internal/model"
)

// itemDef is the YAML shape of an item template.
type itemDef struct {
	ID        int32  `yaml:"id"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Stackable bool   `yaml:"stackable"`
}

type itemFile struct {
	Items []itemDef `yaml:"items"`
}

// ItemTable is the registry of item templates.
// Thread-safe: quests resolve templates at load time and during dispatch.
type ItemTable struct {
	mu    sync.RWMutex
	items map[int32]*model.ItemTemplate
}

// NewItemTable creates an empty table.
func NewItemTable() *ItemTable {
	return &ItemTable{items: make(map[int32]*model.ItemTemplate, 64)}
}

// LoadItemTemplates reads templates from a YAML file.
// A missing file is not an error: quests fall back to placeholder templates.
func (t *ItemTable) LoadItemTemplates(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("item template file not found, using placeholders", "path", path)
			return nil
		}
		return fmt.Errorf("reading item templates %s: %w", path, err)
	}

	var f itemFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing item templates %s: %w", path, err)
	}

	for _, d := range f.Items {
		t.Register(&model.ItemTemplate{
			ItemID:    d.ID,
			Name:      d.Name,
			Type:      parseItemType(d.Type),
			Stackable: d.Stackable,
		})
	}

	slog.Info("item templates loaded", "count", len(f.Items), "path", path)
	return nil
}

// Register adds or replaces a template.
func (t *ItemTable) Register(tmpl *model.ItemTemplate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[tmpl.ItemID] = tmpl
}

// Get returns a template by ID (nil if absent).
func (t *ItemTable) Get(itemID int32) *model.ItemTemplate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.items[itemID]
}

// Resolve returns the template for itemID, creating and registering a
// placeholder if it is missing. Missing templates are a load-time warning,
// never a startup failure.
func (t *ItemTable) Resolve(itemID int32, name string) *model.ItemTemplate {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tmpl, ok := t.items[itemID]; ok {
		return tmpl
	}

	if name == "" {
		name = fmt.Sprintf("item_%d", itemID)
	}
	tmpl := &model.ItemTemplate{
		ItemID:      itemID,
		Name:        name,
		Type:        model.ItemTypeQuestItem,
		Placeholder: true,
	}
	t.items[itemID] = tmpl

	slog.Warn("item template missing, created placeholder",
		"itemID", itemID,
		"name", name)

	return tmpl
}

// Count returns the number of registered templates.
func (t *ItemTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func parseItemType(s string) model.ItemType {
	switch s {
	case "quest":
		return model.ItemTypeQuestItem
	case "armor":
		return model.ItemTypeArmor
	case "weapon":
		return model.ItemTypeWeapon
	case "jewel":
		return model.ItemTypeJewel
	default:
		return model.ItemTypeEtcItem
	}
}
