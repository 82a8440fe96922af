package quest

import "strconv"

// ScopeKind tells who owns an ephemeral quest resource.
type ScopeKind uint8

const (
	ScopeNone   ScopeKind = iota // script-level, lives until quest unload
	ScopePlayer                  // owned by one character
	ScopeGroup                   // owned by a party
	ScopeActor                   // owned by a clone actor (its hooks and timers)
)

// Scope is the ownership key for timers, registrations and clones.
// Quest narrows a player or group scope to a single quest (0 = all quests).
type Scope struct {
	Kind  ScopeKind
	ID    int64
	Quest int32
}

// NoScope is the scope of script-level registrations.
var NoScope = Scope{}

// PlayerScope returns the scope of a character.
func PlayerScope(charID int64) Scope {
	return Scope{Kind: ScopePlayer, ID: charID}
}

// GroupScope returns the scope of a party.
func GroupScope(partyID int32) Scope {
	return Scope{Kind: ScopeGroup, ID: int64(partyID)}
}

// ActorScope returns the scope of a clone actor.
func ActorScope(objectID uint32) Scope {
	return Scope{Kind: ScopeActor, ID: int64(objectID)}
}

// ForQuest narrows the scope to one quest.
func (s Scope) ForQuest(questID int32) Scope {
	s.Quest = questID
	return s
}

// IsZero reports whether s is NoScope.
func (s Scope) IsZero() bool {
	return s == NoScope
}

// Owns reports whether resources tracked under other belong to s.
// A scope without quest owns every quest-narrowed scope of the same owner.
func (s Scope) Owns(other Scope) bool {
	if s.IsZero() {
		return other.IsZero()
	}
	if s.Kind != other.Kind || s.ID != other.ID {
		return false
	}
	return s.Quest == 0 || s.Quest == other.Quest
}

// String returns "player:42/q7" style representation for logs.
func (s Scope) String() string {
	var kind string
	switch s.Kind {
	case ScopePlayer:
		kind = "player"
	case ScopeGroup:
		kind = "group"
	case ScopeActor:
		kind = "actor"
	default:
		return "none"
	}
	str := kind + ":" + strconv.FormatInt(s.ID, 10)
	if s.Quest != 0 {
		str += "/q" + strconv.FormatInt(int64(s.Quest), 10)
	}
	return str
}
