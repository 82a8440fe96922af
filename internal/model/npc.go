package model

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotPlaced is returned by AddToWorld when an NPC was built without a world.
var ErrNotPlaced = errors.New("npc has no world placement")

// NpcDescriptor describes an NPC to spawn: quest givers, mobs, clones.
type NpcDescriptor struct {
	Name      string
	GuildName string
	Realm     Realm
	Model     int32
	Level     int32
	Size      int32
	Location  Location
	// Aggressive mobs attack on sight once their AI is armed.
	Aggressive bool
}

// Npc is a world NPC. Quest code only touches it through the Entity
// interface or under its quest.ActorHandle lock.
type Npc struct {
	mu sync.RWMutex

	objectID uint32
	desc     NpcDescriptor
	world    Placement

	inWorld  bool
	alive    bool
	deleted  bool
	location Location

	aggressive   bool
	followTarget uint32 // 0 = none
	emotes       []string
}

// NewNpc creates an NPC bound to a world placement. It is not visible until AddToWorld.
func NewNpc(objectID uint32, desc NpcDescriptor, world Placement) *Npc {
	return &Npc{
		objectID:   objectID,
		desc:       desc,
		world:      world,
		alive:      true,
		location:   desc.Location,
		aggressive: desc.Aggressive,
	}
}

// ObjectID returns the world object ID.
func (n *Npc) ObjectID() uint32 { return n.objectID }

// Name returns NPC name.
func (n *Npc) Name() string { return n.desc.Name }

// GuildName returns the subtitle shown under the name.
func (n *Npc) GuildName() string { return n.desc.GuildName }

// Realm returns NPC realm.
func (n *Npc) Realm() Realm { return n.desc.Realm }

// Level returns NPC level.
func (n *Npc) Level() int32 { return n.desc.Level }

// Descriptor returns the spawn descriptor.
func (n *Npc) Descriptor() NpcDescriptor { return n.desc }

// AddToWorld places the NPC into its world.
func (n *Npc) AddToWorld() error {
	if n.world == nil {
		return ErrNotPlaced
	}

	n.mu.Lock()
	if n.deleted {
		n.mu.Unlock()
		return fmt.Errorf("npc %q (%d) was deleted", n.desc.Name, n.objectID)
	}
	if n.inWorld {
		n.mu.Unlock()
		return nil
	}
	n.inWorld = true
	n.mu.Unlock()

	if err := n.world.Place(n); err != nil {
		n.mu.Lock()
		n.inWorld = false
		n.mu.Unlock()
		return fmt.Errorf("placing npc %q: %w", n.desc.Name, err)
	}
	return nil
}

// Delete removes the NPC from the world permanently.
func (n *Npc) Delete() {
	n.mu.Lock()
	if n.deleted {
		n.mu.Unlock()
		return
	}
	n.deleted = true
	n.alive = false
	wasInWorld := n.inWorld
	n.inWorld = false
	n.mu.Unlock()

	if wasInWorld && n.world != nil {
		n.world.Remove(n.objectID)
	}
}

// IsAlive reports whether the NPC exists and has not died.
func (n *Npc) IsAlive() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.alive && !n.deleted
}

// InWorld reports whether the NPC is placed.
func (n *Npc) InWorld() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.inWorld
}

// Die marks the NPC dead (corpse stays in world).
func (n *Npc) Die() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alive = false
}

// Location returns current position.
func (n *Npc) Location() Location {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.location
}

// MoveTo teleports the NPC.
func (n *Npc) MoveTo(loc Location) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = loc
}

// SayTo sends NPC speech to a single player.
func (n *Npc) SayTo(p *Player, text string) {
	p.SendMessage(n.desc.Name + " says, \"" + text + "\"")
}

// Emote records an emote animation played by the NPC.
func (n *Npc) Emote(emote string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emotes = append(n.emotes, emote)
}

// Emotes returns played emotes in order.
func (n *Npc) Emotes() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, len(n.emotes))
	copy(out, n.emotes)
	return out
}

// Aggressive reports whether the NPC AI attacks on sight.
func (n *Npc) Aggressive() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.aggressive
}

// SetAggressive arms or disarms aggro.
func (n *Npc) SetAggressive(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aggressive = v
}

// FollowTarget returns the object ID the NPC follows (0 = none).
func (n *Npc) FollowTarget() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.followTarget
}

// Follow makes the NPC follow objectID (0 stops following).
func (n *Npc) Follow(objectID uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.followTarget = objectID
}
