package quest

import (
	"fmt"
	"strings"
	"time"

	"github.com/udisondev/realmquest/internal/model"
)

// Effect is one side effect of a transition. Apply returns an undo
// function (nil if nothing to undo) used to roll back when a later effect
// of the same transition fails.
type Effect interface {
	Apply(c *Context) (undo func(), err error)
}

// EffectFunc adapts a function to Effect.
type EffectFunc func(c *Context) (func(), error)

// Apply calls f.
func (f EffectFunc) Apply(c *Context) (func(), error) { return f(c) }

// Func wraps a side effect that has nothing to undo.
func Func(fn func(c *Context) error) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		return nil, fn(c)
	})
}

// speaker is implemented by NPC entities that can talk to players.
type speaker interface {
	SayTo(p *model.Player, text string)
}

// expand substitutes {player} in scripted text.
func expand(text string, p *model.Player) string {
	return strings.ReplaceAll(text, "{player}", p.Name())
}

// GiveItem puts count items of itemID into the player's inventory.
func GiveItem(itemID int32, count int64) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		tmpl := c.m.items.Resolve(itemID, "")
		inv := c.Player.Inventory()
		if err := inv.AddItem(tmpl, count); err != nil {
			return nil, fmt.Errorf("giving item %d: %w", itemID, err)
		}
		return func() {
			if err := inv.RemoveItem(itemID, count); err != nil {
				c.log().Error("undo give item failed", "itemID", itemID, "count", count, "error", err)
			}
		}, nil
	})
}

// RemoveItem takes count items of itemID from the player.
// Fails with ErrMissingItem if the player holds fewer.
func RemoveItem(itemID int32, count int64) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		inv := c.Player.Inventory()
		if err := inv.RemoveItem(itemID, count); err != nil {
			return nil, fmt.Errorf("removing item %d: %w", itemID, ErrMissingItem)
		}
		return func() { inv.Restore(itemID, count) }, nil
	})
}

// GainExperience grants experience points.
func GainExperience(exp int64) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		c.Player.GainExperience(exp)
		return func() { c.Player.GainExperience(-exp) }, nil
	})
}

// AddMoney pays the player.
func AddMoney(amount int64) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		c.Player.AddMoney(amount)
		return func() {
			if err := c.Player.RemoveMoney(amount); err != nil {
				c.log().Error("undo add money failed", "amount", amount, "error", err)
			}
		}, nil
	})
}

// TakeMoney charges the player (e.g. a travel fee).
func TakeMoney(amount int64) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		if err := c.Player.RemoveMoney(amount); err != nil {
			return nil, fmt.Errorf("charging %d: %w", amount, err)
		}
		return func() { c.Player.AddMoney(amount) }, nil
	})
}

// SetFlag sets a quest-local flag on the instance.
func SetFlag(key, value string) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		prev := c.Instance.Flag(key)
		c.Instance.SetFlag(key, value)
		return func() { c.Instance.SetFlag(key, prev) }, nil
	})
}

// Message sends a system message to the player.
func Message(text string) Effect {
	return Func(func(c *Context) error {
		c.Player.SendMessage(expand(text, c.Player))
		return nil
	})
}

// Say makes a declared actor speak to the player.
// A missing or dead actor is skipped.
func Say(actor, text string) Effect {
	return Func(func(c *Context) error {
		h := c.Actor(actor)
		if h == nil {
			c.log().Warn("say: actor not resolved", "actor", actor)
			return nil
		}
		line := expand(text, c.Player)
		err := h.Do(func(e model.Entity) error {
			if s, ok := e.(speaker); ok {
				s.SayTo(c.Player, line)
			}
			return nil
		})
		if err != nil {
			c.log().Debug("say: actor gone", "actor", actor)
		}
		return nil
	})
}

// WithActor runs fn under the actor's lock.
func WithActor(actor string, fn func(c *Context, e model.Entity) error) Effect {
	return Func(func(c *Context) error {
		h := c.Actor(actor)
		if h == nil {
			return fmt.Errorf("actor %q: %w", actor, ErrActorDead)
		}
		return h.Do(func(e model.Entity) error { return fn(c, e) })
	})
}

// AcquireClone creates the player's clone of actor, or attaches to the clone
// a party member on the same quest already holds.
func AcquireClone(actor string) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		if _, err := c.m.acquireClone(c, actor); err != nil {
			return nil, err
		}
		holder := c.Scope()
		return func() { c.m.actors.ReleaseClone(holder, actor) }, nil
	})
}

// ReleaseClone drops the player's reference to a clone after the
// transition commits.
func ReleaseClone(actor string) Effect {
	return Func(func(c *Context) error {
		holder := c.Scope()
		c.Defer(func() { c.m.actors.ReleaseClone(holder, actor) })
		return nil
	})
}

// Beat is one cue of a scripted sequence. Delay counts from the moment the
// sequence is armed. With Actor set, Run executes under the actor's lock and
// the beat is skipped once the actor is gone. Message is sent to the player.
// Discard tears the actor's clone down for every holder. Finish completes
// the quest for the player.
type Beat struct {
	Delay   time.Duration
	Actor   string
	Run     func(e model.Entity)
	Message string
	Discard bool
	Finish  bool
}

// Sequence arms named beats. With bindTo set, the sequence belongs to that
// actor and dies with it; otherwise it belongs to the player's quest scope.
func Sequence(name, bindTo string, beats ...Beat) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		scope := c.Scope()
		if bindTo != "" {
			h := c.Actor(bindTo)
			if h == nil {
				return nil, fmt.Errorf("sequence %q: actor %q: %w", name, bindTo, ErrActorDead)
			}
			scope = h.HookScope()
		}

		cues := make([]Cue, 0, len(beats))
		for _, b := range beats {
			cue, err := c.m.cue(c, b)
			if err != nil {
				return nil, fmt.Errorf("sequence %q: %w", name, err)
			}
			cues = append(cues, cue)
		}

		token := c.m.timers.ScheduleNamed(scope, name, cues)
		return func() { c.m.timers.Cancel(token) }, nil
	})
}

// CancelTimers stops every sequence armed for the player on this quest.
func CancelTimers() Effect {
	return Func(func(c *Context) error {
		scope := c.Scope()
		c.Defer(func() { c.m.timers.CancelScope(scope) })
		return nil
	})
}

// AdvanceGroup moves party members that are on this quest at step from to
// step to, after the transition commits.
func AdvanceGroup(from, to int) Effect {
	return Func(func(c *Context) error {
		p, def := c.Player, c.Def
		c.Defer(func() { c.m.advanceGroup(c.ctx, p, def, from, to) })
		return nil
	})
}

// Watch registers a player-scoped handler for kind that lives until the
// quest finishes, aborts or the player quits. fn only sees this player's
// events.
func Watch(kind EventKind, fn func(c *Context) error) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		reg := c.m.watch(c.Player, c.Def, kind, fn)
		return func() { c.m.bus.Unregister(reg) }, nil
	})
}

// FinishLater finishes the quest for the player after the transition commits.
func FinishLater() Effect {
	return Func(func(c *Context) error {
		p, id := c.Player, c.Def.ID
		c.Defer(func() {
			if err := c.m.Finish(c.ctx, p, id); err != nil {
				c.log().Warn("deferred finish failed", "error", err)
			}
		})
		return nil
	})
}

// AbortLater aborts the quest for the player after the transition commits.
func AbortLater() Effect {
	return Func(func(c *Context) error {
		p, id := c.Player, c.Def.ID
		c.Defer(func() {
			if err := c.m.Abort(c.ctx, p, id); err != nil {
				c.log().Warn("deferred abort failed", "error", err)
			}
		})
		return nil
	})
}

// All groups effects into one. A failure undoes what the group applied.
func All(effects ...Effect) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		return applyEffects(c, effects)
	})
}

// Choose applies yes when pred holds for the player, otherwise no (nil = nothing).
func Choose(pred func(p *model.Player) bool, yes, no Effect) Effect {
	return EffectFunc(func(c *Context) (func(), error) {
		if pred(c.Player) {
			return yes.Apply(c)
		}
		if no == nil {
			return nil, nil
		}
		return no.Apply(c)
	})
}

// applyEffects runs effects in order. On failure everything already applied
// is undone in reverse order and the error is returned.
func applyEffects(c *Context, effects []Effect) (rollback func(), err error) {
	undos := make([]func(), 0, len(effects))
	rollback = func() {
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i]()
		}
	}
	for _, eff := range effects {
		undo, err := eff.Apply(c)
		if err != nil {
			rollback()
			return func() {}, err
		}
		if undo != nil {
			undos = append(undos, undo)
		}
	}
	return rollback, nil
}
