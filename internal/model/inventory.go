package model

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultInventorySlots is the number of distinct item stacks a player can carry.
const DefaultInventorySlots = 40

var (
	// ErrInventoryFull is returned when a new stack does not fit.
	ErrInventoryFull = errors.New("inventory full")
	// ErrNotEnoughItems is returned when a removal asks for more than the player carries.
	ErrNotEnoughItems = errors.New("not enough items")
)

// Inventory tracks item counts by template ID.
// Thread-safe: all methods acquire internal mutex.
type Inventory struct {
	mu      sync.RWMutex
	ownerID int64
	slots   int
	items   map[int32]int64 // itemID → count
}

// NewInventory creates an empty inventory for the character.
func NewInventory(ownerID int64) *Inventory {
	return &Inventory{
		ownerID: ownerID,
		slots:   DefaultInventorySlots,
		items:   make(map[int32]int64, 16),
	}
}

// OwnerID returns the owning character ID.
func (inv *Inventory) OwnerID() int64 {
	return inv.ownerID
}

// SetSlots changes the stack capacity.
func (inv *Inventory) SetSlots(n int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.slots = n
}

// AddItem adds count items of the template.
// Returns ErrInventoryFull if a new stack would exceed the slot limit.
func (inv *Inventory) AddItem(tmpl *ItemTemplate, count int64) error {
	if tmpl == nil {
		return errors.New("nil item template")
	}
	if count <= 0 {
		return fmt.Errorf("invalid item count %d", count)
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.items[tmpl.ItemID]; !ok && len(inv.items) >= inv.slots {
		return fmt.Errorf("adding item %d: %w", tmpl.ItemID, ErrInventoryFull)
	}
	inv.items[tmpl.ItemID] += count
	return nil
}

// RemoveItem removes exactly count items of itemID.
// Nothing is removed if the player carries fewer.
func (inv *Inventory) RemoveItem(itemID int32, count int64) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	have := inv.items[itemID]
	if have < count {
		return fmt.Errorf("removing %d of item %d (have %d): %w", count, itemID, have, ErrNotEnoughItems)
	}
	inv.setLocked(itemID, have-count)
	return nil
}

// Restore puts back items taken by a rolled back quest transition.
// The slot limit is not checked.
func (inv *Inventory) Restore(itemID int32, count int64) {
	if count <= 0 {
		return
	}
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items[itemID] += count
}

// RemoveAll removes every item of itemID and returns the removed count.
func (inv *Inventory) RemoveAll(itemID int32) int64 {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	have := inv.items[itemID]
	delete(inv.items, itemID)
	return have
}

// HasItem returns true if at least one item of itemID is carried.
func (inv *Inventory) HasItem(itemID int32) bool {
	return inv.Count(itemID) > 0
}

// Count returns the number of items of itemID.
func (inv *Inventory) Count(itemID int32) int64 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.items[itemID]
}

// Stacks returns the number of distinct item stacks.
func (inv *Inventory) Stacks() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.items)
}

func (inv *Inventory) setLocked(itemID int32, count int64) {
	if count <= 0 {
		delete(inv.items, itemID)
		return
	}
	inv.items[itemID] = count
}
