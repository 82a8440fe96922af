package model

import (
	"errors"
	"fmt"
	"sync"
)

// MaxPlayerLevel is the level cap.
const MaxPlayerLevel = 50

// ErrNotEnoughMoney is returned when a payment exceeds the carried money.
var ErrNotEnoughMoney = errors.New("not enough money")

// Player is a connected character as seen by the quest engine.
// Thread-safe: fields touched from several goroutines are guarded by mu.
type Player struct {
	mu sync.RWMutex

	objectID    uint32
	characterID int64
	name        string
	realm       Realm
	classID     int32

	level      int32
	experience int64
	money      int64 // copper
	zoneID     int32

	inventory *Inventory
	party     *Party

	messages []string // last messages sent to the client, newest last
}

// maxMessageBacklog bounds the in-memory message log.
const maxMessageBacklog = 64

// NewPlayer creates a player. Level must be in [1, MaxPlayerLevel].
func NewPlayer(objectID uint32, characterID int64, name string, level int32, realm Realm, classID int32) (*Player, error) {
	if name == "" {
		return nil, errors.New("player name cannot be empty")
	}
	if level < 1 || level > MaxPlayerLevel {
		return nil, fmt.Errorf("player level %d out of range [1, %d]", level, MaxPlayerLevel)
	}

	return &Player{
		objectID:    objectID,
		characterID: characterID,
		name:        name,
		level:       level,
		realm:       realm,
		classID:     classID,
		inventory:   NewInventory(characterID),
	}, nil
}

// ObjectID returns the world object ID.
func (p *Player) ObjectID() uint32 { return p.objectID }

// CharacterID returns the persistent character ID.
func (p *Player) CharacterID() int64 { return p.characterID }

// Name returns the character name.
func (p *Player) Name() string { return p.name }

// Realm returns the player's realm.
func (p *Player) Realm() Realm { return p.realm }

// ClassID returns the player's class.
func (p *Player) ClassID() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.classID
}

// Level returns the current level.
func (p *Player) Level() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

// SetLevel changes the level.
func (p *Player) SetLevel(level int32) error {
	if level < 1 || level > MaxPlayerLevel {
		return fmt.Errorf("player level %d out of range [1, %d]", level, MaxPlayerLevel)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
	return nil
}

// Experience returns accumulated experience.
func (p *Player) Experience() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.experience
}

// GainExperience adds exp (negative values take it back, floored at 0).
func (p *Player) GainExperience(exp int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.experience = max(p.experience+exp, 0)
}

// Money returns carried money in copper.
func (p *Player) Money() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.money
}

// AddMoney adds copper to the purse.
func (p *Player) AddMoney(amount int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.money = max(p.money+amount, 0)
}

// RemoveMoney takes copper from the purse.
// Returns ErrNotEnoughMoney without changes if the purse is short.
func (p *Player) RemoveMoney(amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.money < amount {
		return fmt.Errorf("paying %d (have %d): %w", amount, p.money, ErrNotEnoughMoney)
	}
	p.money -= amount
	return nil
}

// ZoneID returns the zone the player is in.
func (p *Player) ZoneID() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.zoneID
}

// SetZoneID moves the player to another zone.
func (p *Player) SetZoneID(zoneID int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.zoneID = zoneID
}

// Inventory returns the player's inventory.
func (p *Player) Inventory() *Inventory { return p.inventory }

// Party returns the party the player belongs to (nil if solo).
func (p *Player) Party() *Party {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.party
}

// SetParty sets the player's party. Called by Party.AddMember/RemoveMember.
func (p *Player) SetParty(party *Party) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.party = party
}

// SendMessage queues a message for the client.
func (p *Player) SendMessage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	if len(p.messages) > maxMessageBacklog {
		p.messages = p.messages[len(p.messages)-maxMessageBacklog:]
	}
}

// Messages returns a copy of the message backlog.
func (p *Player) Messages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.messages))
	copy(out, p.messages)
	return out
}

// LastMessage returns the newest message ("" if none).
func (p *Player) LastMessage() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.messages) == 0 {
		return ""
	}
	return p.messages[len(p.messages)-1]
}
