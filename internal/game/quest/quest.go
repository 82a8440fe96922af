package quest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/udisondev/realmquest/internal/model"
)

// StepStay as Transition.Next keeps the instance at its current step.
const StepStay = 0

// ActorSpec declares an NPC a quest works with.
// Singletons are resolved once when the quest is loaded; clones are
// spawned per run by the AcquireClone effect.
type ActorSpec struct {
	Name  string
	Clone bool
	Desc  model.NpcDescriptor
}

// descriptor returns the world descriptor, named after the spec by default.
func (a *ActorSpec) descriptor() model.NpcDescriptor {
	d := a.Desc
	if d.Name == "" {
		d.Name = a.Name
	}
	return d
}

// singletonKey identifies a singleton across quests: the same NPC declared
// by several quests resolves to one handle.
func (a *ActorSpec) singletonKey() string {
	d := a.descriptor()
	return d.Realm.String() + ":" + strings.ToLower(d.Name)
}

// Transition is one row of a quest's step table: at Step, an event of Kind
// that matches the target filters and Guard applies Effects and moves to Next.
type Transition struct {
	Step int
	Kind EventKind

	// Actor names an ActorSpec the event must be addressed to.
	// Empty means the transition listens on the Global bus target.
	Actor string
	// Target filters by entity name when Actor is empty (e.g. killed mob).
	Target string
	// ItemID filters give/receive events (0 = any).
	ItemID int32
	// Text filters whispers, case-insensitive (empty = any).
	Text string

	Guard   func(c *Context) bool
	Effects []Effect
	Next    int
}

// matches reports whether the event payload satisfies the row's filters.
func (t *Transition) matches(e *Event) bool {
	if t.Kind != e.Kind {
		return false
	}
	if t.Target != "" && !strings.EqualFold(t.Target, e.TargetName()) {
		return false
	}
	if t.ItemID != 0 && t.ItemID != e.ItemID {
		return false
	}
	if t.Text != "" && !strings.EqualFold(t.Text, e.Text) {
		return false
	}
	return true
}

// Definition is the immutable description of a quest type.
// Built at script-load time; never mutated once registered.
type Definition struct {
	ID   int32
	Name string

	MinLevel       int32
	MaxLevel       int32 // 0 = no upper bound
	Prerequisites  []int32
	MaxCompletions int // 0 = 1

	// Accessible is the zone/party accessibility predicate (nil = always).
	Accessible func(p *model.Player) bool
	// Override is a quest-specific restriction such as class (nil = none).
	Override func(p *model.Player) bool
	// Revalidate re-runs Accessible and Override before every transition.
	Revalidate bool

	// Giver is the actor offering the quest. OfferKeyword is the whisper
	// that proposes it (empty = interaction proposes it).
	Giver        string
	OfferKeyword string
	OfferText    string

	Actors      []ActorSpec
	OnAccept    []Effect
	Transitions []Transition
	// Rewards are applied exactly once when the quest finishes.
	Rewards []Effect
	// Reversals are applied when the quest is aborted (e.g. fee refunds).
	Reversals []Effect
	// QuestItems are stripped from the inventory on finish and abort.
	QuestItems []int32
	// OnEnterWorld runs for players logging in mid-quest, by step.
	OnEnterWorld map[int][]Effect
}

// Steps returns the highest step referenced by the table.
func (d *Definition) Steps() int {
	top := 0
	for i := range d.Transitions {
		top = max(top, d.Transitions[i].Step, d.Transitions[i].Next)
	}
	return top
}

// Actor returns the spec named name (nil if not declared).
func (d *Definition) Actor(name string) *ActorSpec {
	for i := range d.Actors {
		if d.Actors[i].Name == name {
			return &d.Actors[i]
		}
	}
	return nil
}

// maxCompletions returns the effective completion limit.
func (d *Definition) maxCompletions() int {
	if d.MaxCompletions <= 0 {
		return 1
	}
	return d.MaxCompletions
}

// Validate checks the step table for structural mistakes.
func (d *Definition) Validate() error {
	var errs []error

	if d.ID <= 0 {
		errs = append(errs, fmt.Errorf("invalid quest ID %d", d.ID))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("empty quest name"))
	}
	if d.MaxLevel > 0 && d.MaxLevel < d.MinLevel {
		errs = append(errs, fmt.Errorf("level window %d..%d is empty", d.MinLevel, d.MaxLevel))
	}
	if d.Giver != "" && d.Actor(d.Giver) == nil {
		errs = append(errs, fmt.Errorf("giver %q is not a declared actor", d.Giver))
	}
	if len(d.Transitions) == 0 {
		errs = append(errs, errors.New("no transitions"))
	}

	seen := make(map[string]struct{}, len(d.Actors))
	for _, a := range d.Actors {
		if _, dup := seen[a.Name]; dup {
			errs = append(errs, fmt.Errorf("actor %q declared twice", a.Name))
		}
		seen[a.Name] = struct{}{}
	}

	for i, t := range d.Transitions {
		if t.Step < 1 {
			errs = append(errs, fmt.Errorf("transition %d: step %d must be >= 1", i, t.Step))
		}
		if t.Next < StepAborted {
			errs = append(errs, fmt.Errorf("transition %d: invalid next step %d", i, t.Next))
		}
		switch t.Kind {
		case EventPlayerEnteredWorld, EventPlayerQuit, EventDialogResponse:
			errs = append(errs, fmt.Errorf("transition %d: %s is handled by the engine", i, t.Kind))
		}
		if t.Actor != "" && d.Actor(t.Actor) == nil {
			errs = append(errs, fmt.Errorf("transition %d: unknown actor %q", i, t.Actor))
		}
	}

	return errors.Join(errs...)
}
