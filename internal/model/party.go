package model

import (
	"fmt"
	"sync"
)

// MaxPartyMembers is the maximum party size.
const MaxPartyMembers = 8

// Party represents a group of players cooperating together.
// Thread-safe: all methods acquire internal mutex.
type Party struct {
	mu      sync.RWMutex
	id      int32
	leader  *Player
	members []*Player // leader всегда первый элемент
}

// NewParty creates a party with the given leader.
// Leader is automatically added as first member.
func NewParty(id int32, leader *Player) *Party {
	p := &Party{
		id:      id,
		leader:  leader,
		members: make([]*Player, 0, MaxPartyMembers),
	}
	p.members = append(p.members, leader)
	leader.SetParty(p)
	return p
}

// ID returns immutable party ID.
func (p *Party) ID() int32 {
	return p.id
}

// Leader returns current party leader.
func (p *Party) Leader() *Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.leader
}

// AddMember adds a player to the party.
func (p *Party) AddMember(player *Player) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.members) >= MaxPartyMembers {
		return fmt.Errorf("party %d is full", p.id)
	}
	for _, m := range p.members {
		if m.ObjectID() == player.ObjectID() {
			return fmt.Errorf("player %s already in party %d", player.Name(), p.id)
		}
	}
	p.members = append(p.members, player)
	player.SetParty(p)
	return nil
}

// RemoveMember removes a player from the party.
// If the leader leaves, the next member becomes leader.
func (p *Party) RemoveMember(objectID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, m := range p.members {
		if m.ObjectID() != objectID {
			continue
		}
		p.members = append(p.members[:i], p.members[i+1:]...)
		m.SetParty(nil)
		if p.leader.ObjectID() == objectID && len(p.members) > 0 {
			p.leader = p.members[0]
		}
		return true
	}
	return false
}

// Members returns a snapshot of party members.
func (p *Party) Members() []*Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Player, len(p.members))
	copy(out, p.members)
	return out
}

// MemberCount returns number of members.
func (p *Party) MemberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.members)
}
