package quests

import (
	"time"

	"github.com/udisondev/realmquest/internal/game/quest"
	"github.com/udisondev/realmquest/internal/model"
)

// Ferry passage constants.
const (
	FerryPassageID int32 = 303

	FerrymanColm = "Ferryman Colm"

	ferryFare = 5 * Silver
)

// crossingTime is how long the ferry takes from departure to landing.
var crossingTime = 30 * time.Second

// NewFerryPassage creates "Passage to Ludlow" quest.
// Any level, Albion, repeatable. The fare is paid on accept and refunded
// if the passage is abandoned before landing.
func NewFerryPassage() *quest.Definition {
	crossing := crossingTime

	return &quest.Definition{
		ID:             FerryPassageID,
		Name:           "Passage to Ludlow",
		MinLevel:       1,
		MaxCompletions: 100,
		Accessible:     inRealm(model.RealmAlbion),

		Giver:        FerrymanColm,
		OfferKeyword: "passage",
		OfferText:    "Passage to Ludlow costs " + formatMoney(ferryFare) + ". Shall I take you across?",

		Actors: []quest.ActorSpec{
			{Name: FerrymanColm, Desc: model.NpcDescriptor{
				Realm: model.RealmAlbion, Level: 20, Model: 33,
				GuildName: "Ferryman",
				Location:  model.Location{RegionID: 1, X: 531000, Y: 479000, Z: 2200, Heading: 3000},
			}},
		},

		OnAccept: []quest.Effect{
			quest.TakeMoney(ferryFare),
			quest.Say(FerrymanColm, "Step aboard, {player}. Tell me when you are ready to [depart]."),
		},
		// Crossing timers die with the session; a relog mid-river lands the
		// player after the remaining half of the trip.
		OnEnterWorld: map[int][]quest.Effect{
			2: {
				quest.Message("You are still aboard the ferry to Ludlow."),
				quest.Sequence("crossing", "",
					quest.Beat{Delay: crossing / 2, Message: "The ferry lands at Ludlow.", Finish: true},
				),
			},
		},
		Transitions: []quest.Transition{
			{
				Step:  1,
				Kind:  quest.EventWhisper,
				Actor: FerrymanColm,
				Text:  "depart",
				Effects: []quest.Effect{
					quest.Say(FerrymanColm, "Hold on tight!"),
					quest.Sequence("crossing", "",
						quest.Beat{Delay: crossing / 2, Message: "The ferry drifts across the river."},
						quest.Beat{Delay: crossing, Message: "The ferry lands at Ludlow.", Finish: true},
					),
				},
				Next: 2,
			},
			{
				Step:    2,
				Kind:    quest.EventInteract,
				Actor:   FerrymanColm,
				Effects: []quest.Effect{quest.Say(FerrymanColm, "We are under way, {player}. Patience.")},
				Next:    quest.StepStay,
			},
		},

		Reversals: []quest.Effect{
			quest.AddMoney(ferryFare),
			quest.Message("Your fare of " + formatMoney(ferryFare) + " is refunded."),
		},
	}
}
