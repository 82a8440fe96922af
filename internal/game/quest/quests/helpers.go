// Package quests holds the quest content shipped with the server: Go-coded
// step tables and the loader for declarative YAML tables.
package quests

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/udisondev/realmquest/internal/game/quest"
	"github.com/udisondev/realmquest/internal/model"
)

// Money denominations, in copper.
const (
	Copper int64 = 1
	Silver       = 100 * Copper
	Gold         = 100 * Silver
)

// Albion class IDs.
const (
	ClassPaladin     int32 = 1
	ClassArmsman     int32 = 2
	ClassScout       int32 = 3
	ClassMinstrel    int32 = 4
	ClassTheurgist   int32 = 5
	ClassCleric      int32 = 6
	ClassWizard      int32 = 7
	ClassSorcerer    int32 = 8
	ClassInfiltrator int32 = 9
	ClassFriar       int32 = 10
	ClassMercenary   int32 = 11
	ClassNecromancer int32 = 12
	ClassCabalist    int32 = 13
	ClassFighter     int32 = 14
	ClassReaver      int32 = 19
)

// wearsMail reports whether the player's class can equip mail gauntlets.
func wearsMail(p *model.Player) bool {
	switch p.ClassID() {
	case ClassPaladin, ClassArmsman, ClassScout, ClassMinstrel,
		ClassCleric, ClassMercenary, ClassFighter, ClassReaver:
		return true
	}
	return false
}

// inRealm restricts a quest to players of one realm.
func inRealm(r model.Realm) func(p *model.Player) bool {
	return func(p *model.Player) bool { return p.Realm() == r }
}

// formatMoney renders copper as "2 gold, 9 silver, 14 copper".
func formatMoney(amount int64) string {
	if amount == 0 {
		return "0 copper"
	}
	var parts []string
	if g := amount / Gold; g > 0 {
		parts = append(parts, fmt.Sprintf("%d gold", g))
	}
	if s := amount % Gold / Silver; s > 0 {
		parts = append(parts, fmt.Sprintf("%d silver", s))
	}
	if c := amount % Silver; c > 0 {
		parts = append(parts, fmt.Sprintf("%d copper", c))
	}
	return strings.Join(parts, ", ")
}

// payBetween pays base plus a random amount below spread and tells the player.
func payBetween(base, spread int64) quest.Effect {
	return quest.EffectFunc(func(c *quest.Context) (func(), error) {
		amount := base
		if spread > 0 {
			amount += rand.Int64N(spread)
		}
		c.Player.AddMoney(amount)
		c.Player.SendMessage("You receive " + formatMoney(amount) + " as a reward.")
		return func() {
			if err := c.Player.RemoveMoney(amount); err != nil {
				c.Logger().Error("undo reward payment failed", "amount", amount, "error", err)
			}
		}, nil
	})
}

// chatter builds flavor rows: at each of steps, kind on actor (filtered by
// text for whispers) makes the actor say line without changing the step.
func chatter(actor string, kind quest.EventKind, text, line string, steps ...int) []quest.Transition {
	rows := make([]quest.Transition, 0, len(steps))
	for _, s := range steps {
		rows = append(rows, quest.Transition{
			Step:    s,
			Kind:    kind,
			Actor:   actor,
			Text:    text,
			Effects: []quest.Effect{quest.Say(actor, line)},
			Next:    quest.StepStay,
		})
	}
	return rows
}

type emoter interface {
	Emote(emote string)
}

type follower interface {
	Follow(objectID uint32)
}

type aggressor interface {
	SetAggressive(v bool)
}

// emote returns a beat action playing an emote on the actor.
func emote(name string) func(e model.Entity) {
	return func(e model.Entity) {
		if em, ok := e.(emoter); ok {
			em.Emote(name)
		}
	}
}

// followPlayer makes the actor follow the acting player.
func followPlayer(actor string) quest.Effect {
	return quest.WithActor(actor, func(c *quest.Context, e model.Entity) error {
		if f, ok := e.(follower); ok {
			f.Follow(c.Player.ObjectID())
		}
		return nil
	})
}

// armAggro makes the actor attack on sight. Arming an aggressive actor again
// is a no-op.
func armAggro(actor string) quest.Effect {
	return quest.WithActor(actor, func(_ *quest.Context, e model.Entity) error {
		if a, ok := e.(aggressor); ok {
			a.SetAggressive(true)
		}
		return nil
	})
}

// unflagged holds until the player's instance carries flag.
func unflagged(flag string) func(c *quest.Context) bool {
	return func(c *quest.Context) bool { return !c.Instance.HasFlag(flag) }
}
