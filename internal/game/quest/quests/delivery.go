package quests

import (
	"github.com/udisondev/realmquest/internal/game/quest"
	"github.com/udisondev/realmquest/internal/model"
)

// Delivery quest constants.
const (
	DeliveryID int32 = 101

	ApprenticeDunan = "Apprentice Dunan"
	StableBombard   = "Bombard"

	SackOfSupplies    int32 = 1011
	CrateOfVegetables int32 = 1012
	RecruitsCloak     int32 = 1013
)

// NewDelivery creates "Important Delivery" quest.
// Level 1-5, Albion, once. Dunan hands over a sack of supplies for Bombard;
// Bombard trades it for a crate that goes back to Dunan.
func NewDelivery() *quest.Definition {
	return &quest.Definition{
		ID:         DeliveryID,
		Name:       "Important Delivery",
		MinLevel:   1,
		MaxLevel:   5,
		Accessible: inRealm(model.RealmAlbion),
		Giver:      ApprenticeDunan,
		OfferText:  "Could you take these supplies to Bombard at the Camelot gates?",

		Actors: []quest.ActorSpec{
			{Name: ApprenticeDunan, Desc: model.NpcDescriptor{
				Realm: model.RealmAlbion, Level: 12, Model: 49,
				GuildName: "Part of Important Delivery Quest",
				Location:  model.Location{RegionID: 1, X: 560623, Y: 511737, Z: 2344, Heading: 1},
			}},
			{Name: StableBombard, Desc: model.NpcDescriptor{
				Realm: model.RealmAlbion, Level: 12, Model: 8,
				GuildName: "Stable Master",
				Location:  model.Location{RegionID: 1, X: 515718, Y: 496743, Z: 3352, Heading: 2500},
			}},
		},

		OnAccept: []quest.Effect{
			quest.GiveItem(SackOfSupplies, 1),
			quest.Say(ApprenticeDunan, "Bombard is waiting for these, {player}. Hand him the sack and bring back what he gives you."),
		},
		Transitions: []quest.Transition{
			{
				Step:   1,
				Kind:   quest.EventGiveItem,
				Actor:  StableBombard,
				ItemID: SackOfSupplies,
				Effects: []quest.Effect{
					quest.RemoveItem(SackOfSupplies, 1),
					quest.GiveItem(CrateOfVegetables, 1),
					quest.Say(StableBombard, "Ah, the supplies. Take this crate of vegetables back to Dunan, {player}."),
				},
				Next: 2,
			},
			{
				Step:   2,
				Kind:   quest.EventGiveItem,
				Actor:  ApprenticeDunan,
				ItemID: CrateOfVegetables,
				Effects: []quest.Effect{
					quest.RemoveItem(CrateOfVegetables, 1),
					quest.Say(ApprenticeDunan, "Thank you {player}. Here is something for your trouble."),
				},
				Next: quest.StepFinished,
			},
		},

		Rewards: []quest.Effect{
			quest.GainExperience(12),
			payBetween(1*Silver, 50*Copper),
			quest.GiveItem(RecruitsCloak, 1),
		},
		QuestItems: []int32{SackOfSupplies, CrateOfVegetables},
	}
}
