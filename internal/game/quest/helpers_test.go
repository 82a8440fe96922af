package quest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/realmquest/internal/data"
	"github.com/udisondev/realmquest/internal/model"
	"github.com/udisondev/realmquest/internal/world"
)

// memRepo is an in-memory Repository.
type memRepo struct {
	mu      sync.Mutex
	recs    map[int64]map[int32]InstanceRecord
	saves   int
	deletes int
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{recs: make(map[int64]map[int32]InstanceRecord)}
}

func (r *memRepo) LoadQuestInstances(_ context.Context, charID int64) ([]InstanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InstanceRecord, 0, len(r.recs[charID]))
	for _, rec := range r.recs[charID] {
		out = append(out, rec)
	}
	return out, nil
}

func (r *memRepo) SaveQuestInstance(_ context.Context, rec InstanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if r.recs[rec.CharacterID] == nil {
		r.recs[rec.CharacterID] = make(map[int32]InstanceRecord)
	}
	r.recs[rec.CharacterID][rec.QuestID] = rec
	r.saves++
	return nil
}

func (r *memRepo) DeleteQuestInstance(_ context.Context, charID int64, questID int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	delete(r.recs[charID], questID)
	r.deletes++
	return nil
}

func (r *memRepo) get(charID int64, questID int32) (InstanceRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[charID][questID]
	return rec, ok
}

func (r *memRepo) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

var errRepoDown = errors.New("repository down")

// testEnv bundles a manager with its collaborators.
type testEnv struct {
	m     *Manager
	world *world.World
	items *data.ItemTable
	repo  *memRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	w := world.New()
	items := data.NewItemTable()
	repo := newMemRepo()
	m := NewManager(repo, w, items)
	t.Cleanup(m.Scheduler().Shutdown)
	return &testEnv{m: m, world: w, items: items, repo: repo}
}

func newTestPlayer(t *testing.T, charID int64, name string, level int32) *model.Player {
	t.Helper()
	p, err := model.NewPlayer(0x10000000+uint32(charID), charID, name, level, model.RealmAlbion, 1)
	require.NoError(t, err, "NewPlayer(%d, %s)", charID, name)
	return p
}

// spawnNpc places an NPC so singleton lookups find it.
func spawnNpc(t *testing.T, w *world.World, name string) model.Entity {
	t.Helper()
	e, err := w.SpawnEntity(model.NpcDescriptor{Name: name, Realm: model.RealmAlbion})
	require.NoError(t, err)
	require.NoError(t, e.AddToWorld())
	return e
}

// login dispatches PlayerEnteredWorld for p.
func (env *testEnv) login(t *testing.T, p *model.Player) {
	t.Helper()
	res := env.m.Dispatch(context.Background(), EnteredWorldEvent(p))
	require.Zero(t, res.Faults)
}

const (
	deliveryID  int32 = 101
	parcelID    int32 = 5001
	receiptID   int32 = 5002
	rewardItem  int32 = 5003
	deliveryXP  int64 = 500
	deliveryPay int64 = 120
)

// deliveryDef: parcel to NPC_A, receipt to NPC_B, reward once.
func deliveryDef() *Definition {
	return &Definition{
		ID:       deliveryID,
		Name:     "Delivery",
		MinLevel: 5,
		MaxLevel: 10,
		Giver:    "NPC_A",
		Actors: []ActorSpec{
			{Name: "NPC_A", Desc: model.NpcDescriptor{Realm: model.RealmAlbion}},
			{Name: "NPC_B", Desc: model.NpcDescriptor{Realm: model.RealmAlbion}},
		},
		OnAccept: []Effect{GiveItem(parcelID, 1)},
		Transitions: []Transition{
			{
				Step: 1, Kind: EventGiveItem, Actor: "NPC_A", ItemID: parcelID,
				Effects: []Effect{RemoveItem(parcelID, 1), GiveItem(receiptID, 1), Say("NPC_A", "Take this receipt to NPC_B, {player}.")},
				Next:    2,
			},
			{
				Step: 2, Kind: EventGiveItem, Actor: "NPC_B", ItemID: receiptID,
				Effects: []Effect{RemoveItem(receiptID, 1)},
				Next:    StepFinished,
			},
		},
		Rewards:    []Effect{GainExperience(deliveryXP), AddMoney(deliveryPay), GiveItem(rewardItem, 1)},
		QuestItems: []int32{parcelID, receiptID},
	}
}
