package quest

import (
	"maps"
	"sync"
	"time"
)

// Step sentinels. Steps 1..N are in progress.
const (
	StepNotStarted = 0
	StepFinished   = -1
	StepAborted    = -2
)

// InstanceRecord is the persisted form of an Instance.
type InstanceRecord struct {
	QuestID     int32
	CharacterID int64
	Step        int
	StartedAt   time.Time
	UpdatedAt   time.Time
	Completions int
	Flags       map[string]string
}

// Instance tracks one player's progress in one quest.
// Only the owning player's handlers progress it; progress serializes
// re-entrant events (double-click) for the same player.
type Instance struct {
	progress sync.Mutex

	mu          sync.RWMutex
	questID     int32
	charID      int64
	step        int
	startedAt   time.Time
	updatedAt   time.Time
	completions int
	flags       map[string]string
	changed     bool   // dirty flag for persistence
	version     uint64 // bumped on every mutation

	lastEvent *Event // guarded by progress
}

// NewInstance creates a not-started instance.
func NewInstance(questID int32, charID int64) *Instance {
	return &Instance{
		questID: questID,
		charID:  charID,
		flags:   make(map[string]string, 2),
	}
}

// InstanceFromRecord restores an instance loaded from the repository.
func InstanceFromRecord(rec InstanceRecord) *Instance {
	inst := &Instance{
		questID:     rec.QuestID,
		charID:      rec.CharacterID,
		step:        rec.Step,
		startedAt:   rec.StartedAt,
		updatedAt:   rec.UpdatedAt,
		completions: rec.Completions,
		flags:       make(map[string]string, len(rec.Flags)),
	}
	maps.Copy(inst.flags, rec.Flags)
	return inst
}

// QuestID returns the quest identifier.
func (i *Instance) QuestID() int32 { return i.questID }

// CharacterID returns the owning character.
func (i *Instance) CharacterID() int64 { return i.charID }

// Step returns the current step.
func (i *Instance) Step() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.step
}

// IsActive returns true if the quest is in progress.
func (i *Instance) IsActive() bool {
	return i.Step() > 0
}

// IsFinished returns true if the last run finished.
func (i *Instance) IsFinished() bool {
	return i.Step() == StepFinished
}

// Completions returns how many times the quest was finished.
func (i *Instance) Completions() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.completions
}

// StartedAt returns when the current run was accepted.
func (i *Instance) StartedAt() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.startedAt
}

// UpdatedAt returns the time of the last step change.
func (i *Instance) UpdatedAt() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.updatedAt
}

// start begins a new run at step.
func (i *Instance) start(step int, now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.step = step
	i.startedAt = now
	i.updatedAt = now
	clear(i.flags)
	i.touch()
}

// compareAndSetStep moves from → to only if the instance is still at from.
func (i *Instance) compareAndSetStep(from, to int, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.step != from {
		return false
	}
	i.step = to
	i.updatedAt = now
	i.touch()
	return true
}

// finishFrom marks the run finished if it is still at step from.
func (i *Instance) finishFrom(from int, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.step != from {
		return false
	}
	i.step = StepFinished
	i.completions++
	i.updatedAt = now
	clear(i.flags)
	i.touch()
	return true
}

// abortFrom ends the run if it is still at step from.
func (i *Instance) abortFrom(from int, now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.step != from {
		return false
	}
	i.abortLocked(now)
	return true
}

// abort ends the run whatever the step. A quest finished before keeps its
// finished state.
func (i *Instance) abort(now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.abortLocked(now)
}

func (i *Instance) abortLocked(now time.Time) {
	if i.completions > 0 {
		i.step = StepFinished
	} else {
		i.step = StepNotStarted
	}
	i.updatedAt = now
	clear(i.flags)
	i.touch()
}

// restore rolls the instance back to a snapshot.
func (i *Instance) restore(rec InstanceRecord) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.step = rec.Step
	i.startedAt = rec.StartedAt
	i.updatedAt = rec.UpdatedAt
	i.completions = rec.Completions
	i.flags = make(map[string]string, len(rec.Flags))
	maps.Copy(i.flags, rec.Flags)
	i.touch()
}

// touch marks a mutation. Caller holds i.mu.
func (i *Instance) touch() {
	i.changed = true
	i.version++
}

// Flag returns a quest-local flag ("" if unset).
func (i *Instance) Flag(key string) string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.flags[key]
}

// HasFlag reports whether key is set.
func (i *Instance) HasFlag(key string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.flags[key]
	return ok
}

// SetFlag sets a quest-local flag. Empty value removes it.
func (i *Instance) SetFlag(key, value string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if value == "" {
		delete(i.flags, key)
	} else {
		i.flags[key] = value
	}
	i.touch()
}

// Record returns a snapshot for persistence.
func (i *Instance) Record() InstanceRecord {
	rec, _ := i.snapshot()
	return rec
}

// snapshot returns the record together with the version it reflects.
func (i *Instance) snapshot() (InstanceRecord, uint64) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	flags := make(map[string]string, len(i.flags))
	maps.Copy(flags, i.flags)
	return InstanceRecord{
		QuestID:     i.questID,
		CharacterID: i.charID,
		Step:        i.step,
		StartedAt:   i.startedAt,
		UpdatedAt:   i.updatedAt,
		Completions: i.completions,
		Flags:       flags,
	}, i.version
}

// markSaved clears the dirty flag unless the instance changed after the
// snapshot with version v was taken.
func (i *Instance) markSaved(v uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.version == v {
		i.changed = false
	}
}

// IsChanged returns true if state was modified since last save.
func (i *Instance) IsChanged() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.changed
}

// ClearChanged resets the dirty flag after successful save.
func (i *Instance) ClearChanged() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.changed = false
}
