package quests

import (
	"time"

	"github.com/udisondev/realmquest/internal/game/quest"
	"github.com/udisondev/realmquest/internal/model"
)

// Culmination quest constants.
const (
	CulminationID int32 = 12

	MasterFrederick = "Master Frederick"
	MasterDunwyn    = "Master Dunwyn"
	QueenTatiana    = "Queen Tatiana"

	QueenTatianasHead  int32 = 1201
	RecruitsGauntlets  int32 = 1202
	RecruitsGloves     int32 = 1203
	RecruitsJewel      int32 = 1204
	RecruitsJewelCloth int32 = 1205
	RecruitsBracer     int32 = 1206
)

// flagTatianaAttack marks that the player was warned about the queen.
// Stored per instance: the queen is shared by every player on the quest.
const flagTatianaAttack = "tatianaAttack"

// Delays of Master Dunwyn's departure, counted from the step 3 talk.
const (
	dunwynCastAt   = 4000 * time.Millisecond
	dunwynBowAt    = 5000 * time.Millisecond
	dunwynVanishAt = 6000 * time.Millisecond
)

// NewCulmination creates "Culmination" quest.
// Level 5-10, Albion. Master Frederick sends the player to Master Dunwyn,
// who is spawned per player (shared by a group on the same step) and
// leads the hunt for Queen Tatiana. Her head goes back to Frederick.
func NewCulmination() *quest.Definition {
	const group = "Part of Culmination Quest"

	def := &quest.Definition{
		ID:         CulminationID,
		Name:       "Culmination",
		MinLevel:   5,
		MaxLevel:   10,
		Accessible: inRealm(model.RealmAlbion),

		Giver:        MasterFrederick,
		OfferKeyword: "ready",
		OfferText:    "Master Dunwyn and a few recruits will deal with the fairies. Will you join them?",

		Actors: []quest.ActorSpec{
			{Name: MasterFrederick, Desc: model.NpcDescriptor{
				Realm: model.RealmAlbion, Level: 65, Model: 32,
				GuildName: "Part of Frederick Quests",
				Location:  model.Location{RegionID: 1, X: 567969, Y: 509880, Z: 2861, Heading: 65},
			}},
			{Name: QueenTatiana, Desc: model.NpcDescriptor{
				Realm: model.RealmNone, Level: 5, Model: 603, Size: 49,
				GuildName: group,
				Location:  model.Location{RegionID: 1, X: 558500, Y: 533042, Z: 2573, Heading: 174},
			}},
			{Name: MasterDunwyn, Clone: true, Desc: model.NpcDescriptor{
				Realm: model.RealmAlbion, Level: 14, Model: 9, Size: 50,
				GuildName: group,
				Location:  model.Location{RegionID: 1, X: 567604, Y: 509619, Z: 2813, Heading: 342},
			}},
		},

		OnAccept: []quest.Effect{
			quest.Say(MasterFrederick, "Remember, Master Dunwyn is in the woods south of the bridge to Camelot. He is near the fairy's village. Be safe!"),
			quest.AcquireClone(MasterDunwyn),
		},
		OnEnterWorld: map[int][]quest.Effect{
			1: {quest.AcquireClone(MasterDunwyn)},
			2: {quest.AcquireClone(MasterDunwyn)},
			3: {quest.AcquireClone(MasterDunwyn)},
		},

		Rewards: []quest.Effect{
			quest.GainExperience(1012),
			payBetween(9*Silver, 50*Copper),
			quest.Choose(wearsMail,
				quest.All(quest.GiveItem(RecruitsGauntlets, 1), quest.GiveItem(RecruitsJewel, 1)),
				quest.All(quest.GiveItem(RecruitsGloves, 1), quest.GiveItem(RecruitsJewelCloth, 1)),
			),
			quest.GiveItem(RecruitsBracer, 1),
		},
		QuestItems: []int32{QueenTatianasHead},
	}

	var rows []quest.Transition

	// Master Frederick
	rows = append(rows, chatter(MasterFrederick, quest.EventInteract, "",
		"Remember, Master Dunwyn is in the woods south of the bridge to Camelot. He is near the fairy's village. Be safe!", 1)...)
	rows = append(rows, chatter(MasterFrederick, quest.EventInteract, "",
		"You've returned {player}. That can only mean that you were successful in your battle with the fairies! Please, show me whatever proof you have that the fairies are finally gone.", 4)...)
	rows = append(rows, chatter(MasterFrederick, quest.EventInteract, "",
		"Wonderful! Now I know Cotswold will be safe, thanks in no small part to you, Recruit {player}. I have a [reward] for you.", 5)...)
	rows = append(rows,
		quest.Transition{
			Step:   4,
			Kind:   quest.EventGiveItem,
			Actor:  MasterFrederick,
			ItemID: QueenTatianasHead,
			Effects: []quest.Effect{
				quest.RemoveItem(QueenTatianasHead, 1),
				quest.Say(MasterFrederick, "Wonderful! Now I know Cotswold will be safe, thanks in no small part to you, Recruit {player}. Excellent work. Cotswold is forever in your debt. I have a [reward] for you. I hope you have some use for it."),
			},
			Next: 5,
		},
		quest.Transition{
			Step:  5,
			Kind:  quest.EventWhisper,
			Actor: MasterFrederick,
			Text:  "reward",
			Effects: []quest.Effect{
				quest.Say(MasterFrederick, "Here are a few things to help you start off your life as a great adventurer. Be safe and well {player}. You have now grown beyond my teachings."),
			},
			Next: quest.StepFinished,
		},
	)

	// Master Dunwyn
	rows = append(rows, chatter(MasterDunwyn, quest.EventInteract, "",
		"{player}, how good to see you again. I see that the fairy problem is slightly [larger] than when I left.", 1)...)
	rows = append(rows, chatter(MasterDunwyn, quest.EventWhisper, "larger",
		"Here is the situation. The other recruits and I shall stave off the fairy populace while you deal with their Queen, Tatiana. I am fairly certain she is none too happy with you for having [killed] her daughter.", 1, 2)...)
	rows = append(rows, chatter(MasterDunwyn, quest.EventWhisper, "killed",
		"Surely you haven't already forgotten about your great battle with Obera, have you? You must make your way into the camp and slay [Queen Tatiana].", 1, 2)...)
	rows = append(rows, chatter(MasterDunwyn, quest.EventInteract, "",
		"Go now and kill their queen, so that Cotswold is at ease.", 2)...)
	rows = append(rows,
		quest.Transition{
			Step:  1,
			Kind:  quest.EventWhisper,
			Actor: MasterDunwyn,
			Text:  "Queen Tatiana",
			Effects: []quest.Effect{
				quest.Say(MasterDunwyn, "She is easy enough to spot, for her colors differ from the other fairies around her. Good luck {player}."),
				followPlayer(MasterDunwyn),
				quest.AdvanceGroup(1, 2),
			},
			Next: 2,
		},
		quest.Transition{
			Step:  3,
			Kind:  quest.EventInteract,
			Actor: MasterDunwyn,
			Effects: []quest.Effect{
				quest.Say(MasterDunwyn, "Good job again {player}. Now, I will be taking these recruits back to Avalon Marsh with me. Good luck to you {player}."),
				quest.Sequence("dunwyn-departure", MasterDunwyn,
					quest.Beat{Delay: dunwynCastAt, Actor: MasterDunwyn, Run: emote("spell")},
					quest.Beat{Delay: dunwynBowAt, Actor: MasterDunwyn, Run: emote("bind")},
					quest.Beat{Delay: dunwynVanishAt, Actor: MasterDunwyn, Discard: true},
				),
				quest.AdvanceGroup(3, 4),
			},
			Next: 4,
		},
	)

	// Queen Tatiana
	rows = append(rows,
		quest.Transition{
			Step:  2,
			Kind:  quest.EventAICallback,
			Actor: QueenTatiana,
			Guard: unflagged(flagTatianaAttack),
			Effects: []quest.Effect{
				quest.Message("There they are. You take care of the queen, I'll deal with the fairy sorceresses."),
				quest.SetFlag(flagTatianaAttack, "1"),
				armAggro(QueenTatiana),
			},
			Next: quest.StepStay,
		},
		quest.Transition{
			Step:  2,
			Kind:  quest.EventEnemyKilled,
			Actor: QueenTatiana,
			Effects: []quest.Effect{
				quest.Message("You slay the queen and take her head as proof."),
				quest.GiveItem(QueenTatianasHead, 1),
			},
			Next: 3,
		},
	)

	def.Transitions = rows
	return def
}
