package quest

import "errors"

var (
	// ErrQuestNotRegistered is returned for unknown quest IDs.
	ErrQuestNotRegistered = errors.New("quest not registered")
	// ErrIneligible is returned when the eligibility guard declines a player.
	ErrIneligible = errors.New("player not eligible")
	// ErrAlreadyStarted is returned when accepting a quest already in progress.
	ErrAlreadyStarted = errors.New("quest already in progress")
	// ErrNotStarted is returned when aborting or finishing a quest not in progress.
	ErrNotStarted = errors.New("quest not in progress")
	// ErrActorDead is returned by ActorHandle.Do after teardown.
	ErrActorDead = errors.New("actor no longer alive")
	// ErrMissingItem is returned by item effects when the player lacks the item.
	ErrMissingItem = errors.New("required item missing")
)
