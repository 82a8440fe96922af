package quest

import (
	"fmt"

	"github.com/udisondev/realmquest/internal/model"
)

// Reason tells why the guard declined a player.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonAlreadyActive
	ReasonMaxCompletions
	ReasonLevelTooLow
	ReasonLevelTooHigh
	ReasonPrerequisite
	ReasonInaccessible
	ReasonOverride
)

// String returns human-readable reason.
func (r Reason) String() string {
	switch r {
	case ReasonAlreadyActive:
		return "already active"
	case ReasonMaxCompletions:
		return "max completions reached"
	case ReasonLevelTooLow:
		return "level too low"
	case ReasonLevelTooHigh:
		return "level too high"
	case ReasonPrerequisite:
		return "prerequisite not finished"
	case ReasonInaccessible:
		return "not accessible"
	case ReasonOverride:
		return "restricted"
	default:
		return "none"
	}
}

// IneligibleError carries the guard's decision. It matches ErrIneligible.
type IneligibleError struct {
	QuestID int32
	Reason  Reason
	Detail  string
}

func (e *IneligibleError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("quest %d: %s (%s)", e.QuestID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("quest %d: %s", e.QuestID, e.Reason)
}

func (e *IneligibleError) Unwrap() error { return ErrIneligible }

// Guard evaluates quest eligibility. It only reads state.
type Guard struct {
	store *Store
}

// NewGuard creates a guard reading instances from store.
func NewGuard(store *Store) *Guard {
	return &Guard{store: store}
}

// CanStart reports whether player may be granted def.
func (g *Guard) CanStart(p *model.Player, def *Definition) bool {
	return g.Check(p, def) == nil
}

// Check returns nil if player may start def, otherwise *IneligibleError.
func (g *Guard) Check(p *model.Player, def *Definition) error {
	deny := func(r Reason, detail string) error {
		return &IneligibleError{QuestID: def.ID, Reason: r, Detail: detail}
	}

	charID := p.CharacterID()
	if inst := g.store.Get(charID, def.ID); inst != nil {
		if inst.IsActive() {
			return deny(ReasonAlreadyActive, "")
		}
		if done := inst.Completions(); done >= def.maxCompletions() {
			return deny(ReasonMaxCompletions, fmt.Sprintf("%d/%d", done, def.maxCompletions()))
		}
	}

	level := p.Level()
	if level < def.MinLevel {
		return deny(ReasonLevelTooLow, fmt.Sprintf("level %d < %d", level, def.MinLevel))
	}
	if def.MaxLevel > 0 && level > def.MaxLevel {
		return deny(ReasonLevelTooHigh, fmt.Sprintf("level %d > %d", level, def.MaxLevel))
	}

	for _, pre := range def.Prerequisites {
		inst := g.store.Get(charID, pre)
		if inst == nil || inst.Completions() < 1 {
			return deny(ReasonPrerequisite, fmt.Sprintf("quest %d", pre))
		}
	}

	return g.checkAccess(p, def)
}

// Revalidate re-checks the predicates a running quest depends on.
func (g *Guard) Revalidate(p *model.Player, def *Definition) error {
	return g.checkAccess(p, def)
}

func (g *Guard) checkAccess(p *model.Player, def *Definition) error {
	if def.Accessible != nil && !def.Accessible(p) {
		return &IneligibleError{QuestID: def.ID, Reason: ReasonInaccessible}
	}
	if def.Override != nil && !def.Override(p) {
		return &IneligibleError{QuestID: def.ID, Reason: ReasonOverride}
	}
	return nil
}
