package quest

import (
	"github.com/udisondev/realmquest/internal/model"
)

// EventKind identifies the kind of world event.
type EventKind int

const (
	EventInteract           EventKind = iota // Player right-clicked an NPC
	EventWhisper                             // Player whispered text to an NPC
	EventGiveItem                            // Player handed an item to an NPC
	EventReceiveItem                         // Player received an item from an NPC
	EventEnemyKilled                         // Player killed a mob
	EventAICallback                          // NPC AI tick callback
	EventPlayerEnteredWorld                  // Player logged in
	EventPlayerQuit                          // Player logged out / disconnected
	EventDialogResponse                      // Player answered a quest offer or abort dialog
)

// String returns the event kind name used in logs and YAML tables.
func (k EventKind) String() string {
	switch k {
	case EventInteract:
		return "interact"
	case EventWhisper:
		return "whisper"
	case EventGiveItem:
		return "give_item"
	case EventReceiveItem:
		return "receive_item"
	case EventEnemyKilled:
		return "enemy_killed"
	case EventAICallback:
		return "ai_callback"
	case EventPlayerEnteredWorld:
		return "player_entered_world"
	case EventPlayerQuit:
		return "player_quit"
	case EventDialogResponse:
		return "dialog_response"
	default:
		return "unknown"
	}
}

// ParseEventKind maps a YAML/log name back to an EventKind.
func ParseEventKind(s string) (EventKind, bool) {
	for k := EventInteract; k <= EventDialogResponse; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Global is the bus target for events not bound to a specific entity.
const Global uint32 = 0

// DialogKind tells which dialog a response belongs to.
type DialogKind uint8

const (
	DialogOffer DialogKind = iota
	DialogAbort
)

// Event carries world event data to handlers.
type Event struct {
	Kind EventKind
	// Entity is the bus key: the NPC interacted with, the mob killed,
	// the AI owner, or the player itself for session events.
	Entity uint32
	Player *model.Player
	Target model.Entity // NPC involved (nil for session events)

	ItemID  int32  // EventGiveItem / EventReceiveItem
	Text    string // EventWhisper
	QuestID int32  // EventDialogResponse
	Dialog  DialogKind
	Accept  bool
}

// TargetName returns the name of the NPC involved ("" if none).
func (e *Event) TargetName() string {
	if e.Target == nil {
		return ""
	}
	return e.Target.Name()
}

// CharacterID returns the acting character (0 if no player).
func (e *Event) CharacterID() int64 {
	if e.Player == nil {
		return 0
	}
	return e.Player.CharacterID()
}

// InteractEvent builds an interaction event.
func InteractEvent(p *model.Player, npc model.Entity) *Event {
	return &Event{Kind: EventInteract, Entity: npc.ObjectID(), Player: p, Target: npc}
}

// WhisperEvent builds a whisper event.
func WhisperEvent(p *model.Player, npc model.Entity, text string) *Event {
	return &Event{Kind: EventWhisper, Entity: npc.ObjectID(), Player: p, Target: npc, Text: text}
}

// GiveItemEvent builds a player → NPC item hand-over event.
func GiveItemEvent(p *model.Player, npc model.Entity, itemID int32) *Event {
	return &Event{Kind: EventGiveItem, Entity: npc.ObjectID(), Player: p, Target: npc, ItemID: itemID}
}

// ReceiveItemEvent builds an NPC → player item event.
func ReceiveItemEvent(p *model.Player, npc model.Entity, itemID int32) *Event {
	return &Event{Kind: EventReceiveItem, Entity: npc.ObjectID(), Player: p, Target: npc, ItemID: itemID}
}

// EnemyKilledEvent builds a kill event keyed on the killed mob.
func EnemyKilledEvent(killer *model.Player, mob model.Entity) *Event {
	return &Event{Kind: EventEnemyKilled, Entity: mob.ObjectID(), Player: killer, Target: mob}
}

// AICallbackEvent builds an AI tick event. p is the player the AI noticed (may be nil).
func AICallbackEvent(npc model.Entity, p *model.Player) *Event {
	return &Event{Kind: EventAICallback, Entity: npc.ObjectID(), Player: p, Target: npc}
}

// EnteredWorldEvent builds a login event.
func EnteredWorldEvent(p *model.Player) *Event {
	return &Event{Kind: EventPlayerEnteredWorld, Entity: p.ObjectID(), Player: p}
}

// QuitEvent builds a logout event.
func QuitEvent(p *model.Player) *Event {
	return &Event{Kind: EventPlayerQuit, Entity: p.ObjectID(), Player: p}
}

// DialogResponseEvent builds a dialog answer event.
func DialogResponseEvent(p *model.Player, questID int32, dialog DialogKind, accept bool) *Event {
	return &Event{
		Kind:    EventDialogResponse,
		Entity:  p.ObjectID(),
		Player:  p,
		QuestID: questID,
		Dialog:  dialog,
		Accept:  accept,
	}
}
