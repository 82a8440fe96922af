package quest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/realmquest/internal/model"
)

// Token identifies a scheduled callback or sequence. Zero is invalid.
type Token uint64

// Liveness is satisfied by anything a cue can be bound to.
type Liveness interface {
	IsAlive() bool
}

// actorLocker is implemented by *ActorHandle: cues bound to a handle run
// under the handle's mutex.
type actorLocker interface {
	Do(fn func(model.Entity) error) error
}

// Cue is one step of a timed sequence.
// Delay is measured from the moment the sequence was scheduled, not from
// the previous cue.
type Cue struct {
	Entity Liveness // nil = no liveness check
	Delay  time.Duration
	Fn     func()
}

// sequence is an armed chain of cues sharing one token.
// Thread-safe: cancel can be called from any goroutine, including from a cue.
type sequence struct {
	token     Token
	scope     Scope
	name      string
	cues      []Cue
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled atomic.Bool
	fired     atomic.Int32
}

// Scheduler runs one-shot callbacks and cue sequences on their own goroutines.
// Thread-safe for concurrent scheduling and cancellation.
type Scheduler struct {
	mu      sync.Mutex
	active  map[Token]*sequence
	named   map[string]Token // key: scope + ":" + name
	counter atomic.Uint64
	fired   atomic.Int64
	skipped atomic.Int64
	closed  bool
}

// NewScheduler creates a scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		active: make(map[Token]*sequence, 32),
		named:  make(map[string]Token, 16),
	}
}

func namedKey(scope Scope, name string) string {
	return scope.String() + ":" + name
}

// Schedule fires fn once after delay unless cancelled or entity died.
func (s *Scheduler) Schedule(scope Scope, entity Liveness, delay time.Duration, fn func()) Token {
	return s.arm(scope, "", []Cue{{Entity: entity, Delay: delay, Fn: fn}})
}

// ScheduleSequence arms cues as one cancelable chain.
// Cancelling the returned token stops every cue that has not fired yet.
func (s *Scheduler) ScheduleSequence(scope Scope, cues []Cue) Token {
	return s.arm(scope, "", cues)
}

// ScheduleNamed arms cues under a name unique within scope.
// An existing sequence with the same scope and name is cancelled first.
func (s *Scheduler) ScheduleNamed(scope Scope, name string, cues []Cue) Token {
	return s.arm(scope, name, cues)
}

func (s *Scheduler) arm(scope Scope, name string, cues []Cue) Token {
	ordered := slices.Clone(cues)
	slices.SortStableFunc(ordered, func(a, b Cue) int {
		return cmp.Compare(a.Delay, b.Delay)
	})

	ctx, cancel := context.WithCancel(context.Background())
	seq := &sequence{
		token:  Token(s.counter.Add(1)),
		scope:  scope,
		name:   name,
		cues:   ordered,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		close(seq.done)
		return 0
	}
	if name != "" {
		key := namedKey(scope, name)
		// Отменяем существующую последовательность с тем же именем
		if old, ok := s.active[s.named[key]]; ok {
			s.dropLocked(old)
		}
		s.named[key] = seq.token
	}
	s.active[seq.token] = seq
	s.mu.Unlock()

	go s.run(ctx, seq)

	return seq.token
}

func (s *Scheduler) run(ctx context.Context, seq *sequence) {
	defer close(seq.done)
	defer s.forget(seq)

	start := time.Now()
	for _, cue := range seq.cues {
		if wait := time.Until(start.Add(cue.Delay)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
		if seq.cancelled.Load() {
			return
		}
		s.fire(seq, cue)
		seq.fired.Add(1)
	}
}

// fire runs one cue after checking that its entity is still alive.
func (s *Scheduler) fire(seq *sequence, cue Cue) {
	if cue.Entity == nil {
		s.call(seq, cue.Fn)
		return
	}

	if h, ok := cue.Entity.(actorLocker); ok {
		err := h.Do(func(e model.Entity) error {
			if !e.IsAlive() {
				return ErrActorDead
			}
			s.call(seq, cue.Fn)
			return nil
		})
		if errors.Is(err, ErrActorDead) {
			s.skipped.Add(1)
			slog.Debug("timer cue skipped, actor gone", "token", seq.token, "scope", seq.scope.String())
		}
		return
	}

	if !cue.Entity.IsAlive() {
		s.skipped.Add(1)
		slog.Debug("timer cue skipped, entity dead", "token", seq.token, "scope", seq.scope.String())
		return
	}
	s.call(seq, cue.Fn)
}

func (s *Scheduler) call(seq *sequence, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("timer callback panic",
				"token", seq.token,
				"scope", seq.scope.String(),
				"error", fmt.Sprint(r))
		}
	}()
	fn()
	s.fired.Add(1)
}

// forget removes a finished sequence from the active set.
func (s *Scheduler) forget(seq *sequence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.active[seq.token]; ok && current == seq {
		s.dropLocked(seq)
	}
}

// dropLocked cancels and unindexes a sequence. Caller holds s.mu.
// It never waits for the goroutine: a cue that is already running finishes,
// no further cue of the sequence starts.
func (s *Scheduler) dropLocked(seq *sequence) {
	seq.cancelled.Store(true)
	seq.cancel()
	delete(s.active, seq.token)
	if seq.name != "" {
		key := namedKey(seq.scope, seq.name)
		if s.named[key] == seq.token {
			delete(s.named, key)
		}
	}
}

// Cancel stops a sequence. Returns true if it was still active.
func (s *Scheduler) Cancel(token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.active[token]
	if !ok {
		return false
	}
	s.dropLocked(seq)
	return true
}

// CancelNamed stops the sequence armed under (scope, name).
func (s *Scheduler) CancelNamed(scope Scope, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.active[s.named[namedKey(scope, name)]]
	if !ok {
		return false
	}
	s.dropLocked(seq)
	return true
}

// CancelScope stops every sequence owned by scope (see Scope.Owns).
// Returns number cancelled.
func (s *Scheduler) CancelScope(scope Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims []*sequence
	for _, seq := range s.active {
		if scope.Owns(seq.scope) {
			victims = append(victims, seq)
		}
	}
	for _, seq := range victims {
		s.dropLocked(seq)
	}
	return len(victims)
}

// CancelQuest stops every player or group sequence armed for questID.
func (s *Scheduler) CancelQuest(questID int32) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims []*sequence
	for _, seq := range s.active {
		if seq.scope.Quest == questID {
			victims = append(victims, seq)
		}
	}
	for _, seq := range victims {
		s.dropLocked(seq)
	}
	return len(victims)
}

// ActiveCount returns number of armed sequences.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ActiveForScope returns number of armed sequences owned by scope.
func (s *Scheduler) ActiveForScope(scope Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, seq := range s.active {
		if scope.Owns(seq.scope) {
			n++
		}
	}
	return n
}

// IsActive reports whether token is still armed.
func (s *Scheduler) IsActive(token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[token]
	return ok
}

// Stats returns counts of fired and skipped (dead entity) cues.
func (s *Scheduler) Stats() (fired, skipped int64) {
	return s.fired.Load(), s.skipped.Load()
}

// Shutdown cancels all sequences and waits for their goroutines to exit.
// Must not be called from inside a cue.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	all := make([]*sequence, 0, len(s.active))
	for _, seq := range s.active {
		all = append(all, seq)
	}
	for _, seq := range all {
		s.dropLocked(seq)
	}
	s.mu.Unlock()

	for _, seq := range all {
		<-seq.done
	}
}
