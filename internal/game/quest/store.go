package quest

import (
	"context"
	"sync"
)

// Repository persists quest instances. Implemented in the db package.
type Repository interface {
	LoadQuestInstances(ctx context.Context, charID int64) ([]InstanceRecord, error)
	SaveQuestInstance(ctx context.Context, rec InstanceRecord) error
	DeleteQuestInstance(ctx context.Context, charID int64, questID int32) error
}

// Store indexes loaded instances: charID → questID → *Instance.
// Thread-safe for concurrent access.
type Store struct {
	mu        sync.RWMutex
	instances map[int64]map[int32]*Instance
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{instances: make(map[int64]map[int32]*Instance, 256)}
}

// Get returns the instance for (charID, questID) or nil.
func (s *Store) Get(charID int64, questID int32) *Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instances[charID][questID]
}

// GetOrCreate returns the existing instance or registers a not-started one.
func (s *Store) GetOrCreate(charID int64, questID int32) *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuest := s.instances[charID]
	if byQuest == nil {
		byQuest = make(map[int32]*Instance, 4)
		s.instances[charID] = byQuest
	}
	inst, ok := byQuest[questID]
	if !ok {
		inst = NewInstance(questID, charID)
		byQuest[questID] = inst
	}
	return inst
}

// Put replaces the player's instances with loaded ones.
func (s *Store) Put(charID int64, loaded []*Instance) {
	byQuest := make(map[int32]*Instance, len(loaded)+2)
	for _, inst := range loaded {
		byQuest[inst.QuestID()] = inst
	}

	s.mu.Lock()
	s.instances[charID] = byQuest
	s.mu.Unlock()
}

// Merge adds loaded instances for quests the player has no instance of yet.
// Instances already in memory win: they may hold unsaved progress.
// Returns how many loaded instances were taken.
func (s *Store) Merge(charID int64, loaded []*Instance) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	byQuest := s.instances[charID]
	if byQuest == nil {
		byQuest = make(map[int32]*Instance, len(loaded)+2)
		s.instances[charID] = byQuest
	}
	n := 0
	for _, inst := range loaded {
		if _, ok := byQuest[inst.QuestID()]; ok {
			continue
		}
		byQuest[inst.QuestID()] = inst
		n++
	}
	return n
}

// Remove drops one instance.
func (s *Store) Remove(charID int64, questID int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byQuest := s.instances[charID]; byQuest != nil {
		delete(byQuest, questID)
	}
}

// Unload drops all instances of a player.
func (s *Store) Unload(charID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.instances, charID)
}

// Player returns a snapshot of a player's instances.
func (s *Store) Player(charID int64) []*Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byQuest := s.instances[charID]
	out := make([]*Instance, 0, len(byQuest))
	for _, inst := range byQuest {
		out = append(out, inst)
	}
	return out
}

// Active returns the player's in-progress instances.
func (s *Store) Active(charID int64) []*Instance {
	all := s.Player(charID)
	active := all[:0]
	for _, inst := range all {
		if inst.IsActive() {
			active = append(active, inst)
		}
	}
	return active
}

// Loaded reports whether a player has any instance in memory.
func (s *Store) Loaded(charID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.instances[charID]
	return ok
}

// Characters returns IDs of players with instances in memory.
func (s *Store) Characters() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	return ids
}
