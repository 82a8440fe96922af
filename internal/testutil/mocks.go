package testutil

import (
	"context"
	"maps"
	"sync"

	"github.com/udisondev/realmquest/internal/game/quest"
)

// MemoryRepository — in-memory quest.Repository для unit тестов.
// Не требует реальной базы данных.
type MemoryRepository struct {
	mu      sync.RWMutex
	recs    map[int64]map[int32]quest.InstanceRecord
	saves   int
	deletes int
	failErr error
}

var _ quest.Repository = (*MemoryRepository)(nil)

// NewMemoryRepository создаёт пустой MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{recs: make(map[int64]map[int32]quest.InstanceRecord)}
}

// LoadQuestInstances returns copies of the stored records.
func (m *MemoryRepository) LoadQuestInstances(_ context.Context, charID int64) ([]quest.InstanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failErr != nil {
		return nil, m.failErr
	}

	out := make([]quest.InstanceRecord, 0, len(m.recs[charID]))
	for _, rec := range m.recs[charID] {
		rec.Flags = maps.Clone(rec.Flags)
		out = append(out, rec)
	}
	return out, nil
}

// SaveQuestInstance stores a copy of rec.
func (m *MemoryRepository) SaveQuestInstance(_ context.Context, rec quest.InstanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	if m.recs[rec.CharacterID] == nil {
		m.recs[rec.CharacterID] = make(map[int32]quest.InstanceRecord)
	}
	rec.Flags = maps.Clone(rec.Flags)
	m.recs[rec.CharacterID][rec.QuestID] = rec
	m.saves++
	return nil
}

// DeleteQuestInstance removes a stored record.
func (m *MemoryRepository) DeleteQuestInstance(_ context.Context, charID int64, questID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	delete(m.recs[charID], questID)
	m.deletes++
	return nil
}

// Get returns the stored record of one quest.
func (m *MemoryRepository) Get(charID int64, questID int32) (quest.InstanceRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.recs[charID][questID]
	return rec, ok
}

// Saves returns the number of successful saves.
func (m *MemoryRepository) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Deletes returns the number of successful deletes.
func (m *MemoryRepository) Deletes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deletes
}

// Fail makes every following call return err (nil restores normal work).
func (m *MemoryRepository) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}
