package quest

import (
	"context"
	"log/slog"

	"github.com/udisondev/realmquest/internal/model"
)

// Context is what effects and guards see while a transition runs.
// Valid only for the duration of one transition.
type Context struct {
	ctx      context.Context
	m        *Manager
	Player   *model.Player
	Event    *Event // nil for accept, abort and login hooks
	Def      *Definition
	Instance *Instance

	after []func()
}

// Context returns the request context.
func (c *Context) Context() context.Context { return c.ctx }

// Manager returns the owning quest manager.
func (c *Context) Manager() *Manager { return c.m }

// Scope returns the player's scope narrowed to this quest.
func (c *Context) Scope() Scope {
	return PlayerScope(c.Player.CharacterID()).ForQuest(c.Def.ID)
}

// Actor returns the handle for a declared actor: the resolved singleton or
// the clone the player currently holds. Nil if none.
func (c *Context) Actor(name string) *ActorHandle {
	spec := c.Def.Actor(name)
	if spec == nil {
		return nil
	}
	if spec.Clone {
		return c.m.actors.CloneFor(c.Scope(), name)
	}
	return c.m.actors.Singleton(spec.singletonKey())
}

// Defer queues fn to run after the transition committed and the instance
// lock was released. Deferred functions are dropped if the transition fails.
func (c *Context) Defer(fn func()) {
	c.after = append(c.after, fn)
}

// Logger returns a logger annotated with the quest, player and step.
func (c *Context) Logger() *slog.Logger { return c.log() }

func (c *Context) log() *slog.Logger {
	return slog.With(
		"questID", c.Def.ID,
		"quest", c.Def.Name,
		"characterID", c.Player.CharacterID(),
		"step", c.Instance.Step())
}

// runAfter executes deferred functions in order.
func (c *Context) runAfter() {
	for _, fn := range c.after {
		fn()
	}
	c.after = nil
}
