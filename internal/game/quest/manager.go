package quest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/udisondev/realmquest/internal/model"
)

// ItemResolver looks up item templates, creating a placeholder for unknown IDs.
// Implemented by data.ItemTable.
type ItemResolver interface {
	Resolve(itemID int32, name string) *model.ItemTemplate
}

// loadedQuest is a registered definition with its script-level registrations.
type loadedQuest struct {
	def  *Definition
	regs []Registration
}

// Manager loads quest definitions, binds them to the event bus and runs
// their step machines for every player.
// Thread-safe for concurrent access.
type Manager struct {
	mu     sync.RWMutex
	quests map[int32]*loadedQuest
	byName map[string]int32

	offersMu sync.Mutex
	offers   map[int64]map[int32]struct{} // charID → questIDs offered

	bus    *Bus
	timers *Scheduler
	actors *ActorRegistry
	store  *Store
	guard  *Guard

	repo  Repository
	world World
	items ItemResolver

	engineRegs []Registration
}

// NewManager creates a quest manager and subscribes it to session and
// dialog events. repo may be nil (state kept in memory only).
func NewManager(repo Repository, world World, items ItemResolver) *Manager {
	bus := NewBus()
	timers := NewScheduler()
	store := NewStore()

	m := &Manager{
		quests: make(map[int32]*loadedQuest, 64),
		byName: make(map[string]int32, 64),
		offers: make(map[int64]map[int32]struct{}, 64),
		bus:    bus,
		timers: timers,
		actors: NewActorRegistry(bus, timers),
		store:  store,
		guard:  NewGuard(store),
		repo:   repo,
		world:  world,
		items:  items,
	}

	m.engineRegs = []Registration{
		bus.Register(Global, EventPlayerEnteredWorld, NoScope, 0, m.onEnteredWorld),
		bus.Register(Global, EventPlayerQuit, NoScope, 0, m.onQuit),
		bus.Register(Global, EventDialogResponse, NoScope, 0, m.onDialogResponse),
	}
	return m
}

// Bus returns the event bus.
func (m *Manager) Bus() *Bus { return m.bus }

// Scheduler returns the timer scheduler.
func (m *Manager) Scheduler() *Scheduler { return m.timers }

// Actors returns the actor registry.
func (m *Manager) Actors() *ActorRegistry { return m.actors }

// Store returns the instance store.
func (m *Manager) Store() *Store { return m.store }

// Guard returns the eligibility guard.
func (m *Manager) Guard() *Guard { return m.guard }

// Dispatch pushes a world event through the bus.
func (m *Manager) Dispatch(ctx context.Context, e *Event) DispatchResult {
	return m.bus.Dispatch(ctx, e)
}

// RegisterQuest loads a definition: resolves its singleton actors and binds
// its transitions to the bus. A singleton that cannot be resolved is logged
// and the transitions bound to it stay inactive.
func (m *Manager) RegisterQuest(def *Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("quest %d %q: %w", def.ID, def.Name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.quests[def.ID]; exists {
		return fmt.Errorf("quest ID %d already registered", def.ID)
	}
	if _, exists := m.byName[strings.ToLower(def.Name)]; exists {
		return fmt.Errorf("quest %q already registered", def.Name)
	}

	singletons := make(map[string]*ActorHandle, len(def.Actors))
	for i := range def.Actors {
		spec := &def.Actors[i]
		if spec.Clone {
			continue
		}
		h, err := m.actors.ResolveSingleton(spec.singletonKey(), FindOrSpawn(m.world, spec.descriptor()))
		if err != nil {
			slog.Warn("quest actor unresolved",
				"questID", def.ID,
				"actor", spec.Name,
				"error", err)
			continue
		}
		singletons[spec.Name] = h
	}

	// Одна регистрация на (цель, тип события): строки таблицы группируются
	rows := make(map[busKey][]int, len(def.Transitions))
	var order []busKey
	for i, t := range def.Transitions {
		target := Global
		if t.Actor != "" {
			if def.Actor(t.Actor).Clone {
				continue // bound when the clone is spawned
			}
			h, ok := singletons[t.Actor]
			if !ok {
				continue
			}
			target = h.ObjectID()
		}
		key := busKey{target: target, kind: t.Kind}
		if _, seen := rows[key]; !seen {
			order = append(order, key)
		}
		rows[key] = append(rows[key], i)
	}

	lq := &loadedQuest{def: def}
	for _, key := range order {
		lq.regs = append(lq.regs, m.bus.Register(key.target, key.kind, NoScope, def.ID, m.machineHandler(def, rows[key])))
	}

	if def.Giver != "" {
		if giver, ok := singletons[def.Giver]; ok {
			kind := EventInteract
			if def.OfferKeyword != "" {
				kind = EventWhisper
			}
			lq.regs = append(lq.regs, m.bus.Register(giver.ObjectID(), kind, NoScope, def.ID, m.offerHandler(def)))
		}
	}

	m.quests[def.ID] = lq
	m.byName[strings.ToLower(def.Name)] = def.ID

	slog.Debug("quest registered",
		"questID", def.ID,
		"questName", def.Name,
		"registrations", len(lq.regs))

	return nil
}

// UnregisterQuest unloads a quest: removes its bus registrations, clones
// and timers. Player instances stay in the store.
func (m *Manager) UnregisterQuest(questID int32) error {
	m.mu.Lock()
	lq, ok := m.quests[questID]
	if ok {
		delete(m.quests, questID)
		delete(m.byName, strings.ToLower(lq.def.Name))
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("quest %d: %w", questID, ErrQuestNotRegistered)
	}

	revoked := m.bus.UnregisterOwner(questID)
	clones := m.actors.ReleaseQuest(questID)
	timers := m.timers.CancelQuest(questID)

	m.offersMu.Lock()
	for _, offered := range m.offers {
		delete(offered, questID)
	}
	m.offersMu.Unlock()

	slog.Debug("quest unregistered",
		"questID", questID,
		"registrations", revoked,
		"clones", clones,
		"timers", timers)

	return nil
}

// Definition returns a registered quest (nil if unknown).
func (m *Manager) Definition(questID int32) *Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if lq, ok := m.quests[questID]; ok {
		return lq.def
	}
	return nil
}

// DefinitionByName returns a registered quest by case-insensitive name.
func (m *Manager) DefinitionByName(name string) *Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byName[strings.ToLower(name)]; ok {
		return m.quests[id].def
	}
	return nil
}

// QuestCount returns the number of registered quests.
func (m *Manager) QuestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.quests)
}

func (m *Manager) lookup(questID int32) (*Definition, error) {
	def := m.Definition(questID)
	if def == nil {
		return nil, fmt.Errorf("quest %d: %w", questID, ErrQuestNotRegistered)
	}
	return def, nil
}

func (m *Manager) newContext(ctx context.Context, p *model.Player, def *Definition, inst *Instance, e *Event) *Context {
	return &Context{ctx: ctx, m: m, Player: p, Event: e, Def: def, Instance: inst}
}

// Accept grants the quest to the player at step 1 and runs OnAccept effects.
// Returns *IneligibleError if the guard declines.
func (m *Manager) Accept(ctx context.Context, p *model.Player, questID int32) error {
	def, err := m.lookup(questID)
	if err != nil {
		return err
	}
	if err := m.guard.Check(p, def); err != nil {
		return err
	}

	inst := m.store.GetOrCreate(p.CharacterID(), questID)
	c := m.newContext(ctx, p, def, inst, nil)

	err = func() error {
		inst.progress.Lock()
		defer inst.progress.Unlock()

		if inst.IsActive() {
			return fmt.Errorf("quest %d: %w", questID, ErrAlreadyStarted)
		}

		prev := inst.Record()
		inst.start(1, time.Now())
		if _, err := applyEffects(c, def.OnAccept); err != nil {
			inst.restore(prev)
			c.after = nil
			return fmt.Errorf("accepting quest %d: %w", questID, err)
		}
		m.persist(ctx, inst)
		return nil
	}()
	m.clearOffer(p.CharacterID(), questID)
	if err != nil {
		return err
	}
	c.runAfter()

	slog.Info("quest accepted",
		"questID", questID,
		"quest", def.Name,
		"characterID", p.CharacterID())

	return nil
}

// Abort ends the quest for the player, applies its reversal list and
// force-releases every resource the player holds for it, whatever the step.
// Returns ErrNotStarted (after releasing) if the quest was not in progress.
func (m *Manager) Abort(ctx context.Context, p *model.Player, questID int32) error {
	def, err := m.lookup(questID)
	if err != nil {
		return err
	}
	defer m.release(p, def)

	inst := m.store.Get(p.CharacterID(), questID)
	if inst == nil {
		return fmt.Errorf("quest %d: %w", questID, ErrNotStarted)
	}

	c := m.newContext(ctx, p, def, inst, nil)
	err = func() error {
		inst.progress.Lock()
		defer inst.progress.Unlock()

		if !inst.IsActive() {
			return fmt.Errorf("quest %d: %w", questID, ErrNotStarted)
		}
		if _, err := applyEffects(c, def.Reversals); err != nil {
			c.log().Warn("quest reversal failed", "error", err)
			c.after = nil
		}
		inst.abort(time.Now())
		m.persist(ctx, inst)
		return nil
	}()
	if err != nil {
		return err
	}
	c.runAfter()

	slog.Info("quest aborted",
		"questID", questID,
		"quest", def.Name,
		"characterID", p.CharacterID())

	return nil
}

// Finish completes the quest from its current step: rewards are issued once
// and resources released.
func (m *Manager) Finish(ctx context.Context, p *model.Player, questID int32) error {
	def, err := m.lookup(questID)
	if err != nil {
		return err
	}
	inst := m.store.Get(p.CharacterID(), questID)
	if inst == nil {
		return fmt.Errorf("quest %d: %w", questID, ErrNotStarted)
	}

	c := m.newContext(ctx, p, def, inst, nil)
	err = func() error {
		inst.progress.Lock()
		defer inst.progress.Unlock()

		cur := inst.Step()
		if cur <= 0 {
			return fmt.Errorf("quest %d: %w", questID, ErrNotStarted)
		}
		ok, err := m.commit(c, cur, StepFinished, nil)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("quest %d: %w", questID, ErrNotStarted)
		}
		return nil
	}()
	if err != nil {
		return err
	}
	c.runAfter()
	return nil
}

// machineHandler returns the bus handler for a group of table rows.
func (m *Manager) machineHandler(def *Definition, rows []int) Handler {
	return func(ctx context.Context, e *Event) error {
		if e.Player == nil {
			return nil
		}
		return m.advance(ctx, e.Player, def, e, rows)
	}
}

// advance runs the first matching row for the player's instance.
// Events for a step the instance is no longer at are ignored.
func (m *Manager) advance(ctx context.Context, p *model.Player, def *Definition, e *Event, rows []int) error {
	inst := m.store.Get(p.CharacterID(), def.ID)
	if inst == nil || !inst.IsActive() {
		return nil
	}

	c := m.newContext(ctx, p, def, inst, e)
	fired, err := func() (bool, error) {
		inst.progress.Lock()
		defer inst.progress.Unlock()

		// То же событие уже продвинуло этот экземпляр через другую регистрацию
		if inst.lastEvent == e {
			return false, nil
		}

		cur := inst.Step()
		if cur <= 0 {
			return false, nil
		}
		t := m.match(c, rows, cur)
		if t == nil {
			return false, nil
		}
		if def.Revalidate {
			if err := m.guard.Revalidate(p, def); err != nil {
				c.log().Debug("transition blocked by guard", "reason", err)
				return false, nil
			}
		}

		ok, err := m.commit(c, cur, t.Next, t.Effects)
		if err != nil {
			return false, fmt.Errorf("quest %d step %d %s: %w", def.ID, cur, e.Kind, err)
		}
		if ok && t.Next != StepStay {
			inst.lastEvent = e
		}
		return ok, nil
	}()
	if err != nil {
		return err
	}
	if fired {
		c.runAfter()
	}
	return nil
}

// match returns the first row valid at step cur for the context's event.
func (m *Manager) match(c *Context, rows []int, cur int) *Transition {
	e := c.Event
	for _, i := range rows {
		t := &c.Def.Transitions[i]
		if t.Step != cur || !t.matches(e) {
			continue
		}
		if t.Actor != "" {
			h := c.Actor(t.Actor)
			if h == nil || h.ObjectID() != e.Entity {
				continue
			}
		}
		if t.Guard != nil && !t.Guard(c) {
			continue
		}
		return t
	}
	return nil
}

// commit applies effects and moves the instance from cur to next.
// Effects are rolled back and the step left unchanged if any effect fails
// or the instance moved meanwhile. Caller holds inst.progress.
func (m *Manager) commit(c *Context, cur, next int, effects []Effect) (bool, error) {
	switch next {
	case StepFinished:
		effects = append(slices.Clip(effects), c.Def.Rewards...)
	case StepAborted:
		effects = append(slices.Clip(effects), c.Def.Reversals...)
	}

	rollback, err := applyEffects(c, effects)
	if err != nil {
		c.after = nil
		return false, err
	}

	inst := c.Instance
	now := time.Now()
	var ok bool
	switch next {
	case StepStay:
		ok = inst.Step() == cur
	case StepFinished:
		ok = inst.finishFrom(cur, now)
	case StepAborted:
		ok = inst.abortFrom(cur, now)
	default:
		ok = inst.compareAndSetStep(cur, next, now)
	}
	if !ok {
		rollback()
		c.after = nil
		return false, nil
	}

	switch next {
	case StepFinished, StepAborted:
		p, def := c.Player, c.Def
		c.Defer(func() { m.release(p, def) })
	}

	if inst.IsChanged() {
		m.persist(c.ctx, inst)
	}

	log := c.log()
	switch next {
	case StepFinished:
		log.Info("quest finished", "from", cur, "completions", inst.Completions())
	case StepAborted:
		log.Info("quest aborted", "from", cur)
	case StepStay:
	default:
		log.Debug("quest step advanced", "from", cur, "to", next)
	}
	return true, nil
}

// release frees everything the player holds for the quest: clones, timers,
// player-scoped registrations and quest items.
func (m *Manager) release(p *model.Player, def *Definition) {
	scope := PlayerScope(p.CharacterID()).ForQuest(def.ID)
	hooks := m.bus.UnregisterScope(scope)
	timers := m.timers.CancelScope(scope)
	clones := m.actors.ReleaseAll(scope)

	inv := p.Inventory()
	for _, itemID := range def.QuestItems {
		inv.RemoveAll(itemID)
	}

	slog.Debug("quest resources released",
		"questID", def.ID,
		"characterID", p.CharacterID(),
		"hooks", hooks,
		"timers", timers,
		"clones", clones)
}

// persist writes one instance. A not-started instance without completions
// is deleted. Failures are logged; the instance stays dirty for autosave.
func (m *Manager) persist(ctx context.Context, inst *Instance) {
	if m.repo == nil {
		return
	}
	if err := m.persistErr(ctx, inst); err != nil {
		slog.Warn("persisting quest instance failed",
			"questID", inst.QuestID(),
			"characterID", inst.CharacterID(),
			"error", err)
	}
}

func (m *Manager) persistErr(ctx context.Context, inst *Instance) error {
	rec, version := inst.snapshot()
	if rec.Step == StepNotStarted && rec.Completions == 0 {
		if err := m.repo.DeleteQuestInstance(ctx, rec.CharacterID, rec.QuestID); err != nil {
			return fmt.Errorf("deleting quest %d for character %d: %w", rec.QuestID, rec.CharacterID, err)
		}
	} else if err := m.repo.SaveQuestInstance(ctx, rec); err != nil {
		return fmt.Errorf("saving quest %d for character %d: %w", rec.QuestID, rec.CharacterID, err)
	}
	inst.markSaved(version)
	return nil
}

// LoadPlayer loads a player's instances from the repository.
// Instances of quests that are not registered are skipped. Instances already
// in memory are kept, so a repeated login does not drop unsaved progress.
func (m *Manager) LoadPlayer(ctx context.Context, charID int64) error {
	if m.repo == nil {
		m.store.Merge(charID, nil)
		return nil
	}

	recs, err := m.repo.LoadQuestInstances(ctx, charID)
	if err != nil {
		return fmt.Errorf("loading quests for character %d: %w", charID, err)
	}

	loaded := make([]*Instance, 0, len(recs))
	for _, rec := range recs {
		if m.Definition(rec.QuestID) == nil {
			slog.Warn("loaded quest instance for unregistered quest",
				"questID", rec.QuestID,
				"characterID", charID)
			continue
		}
		loaded = append(loaded, InstanceFromRecord(rec))
	}
	taken := m.store.Merge(charID, loaded)

	slog.Debug("loaded player quests",
		"characterID", charID,
		"questCount", len(loaded),
		"kept", len(loaded)-taken)

	return nil
}

// SavePlayer writes every changed instance of the player.
func (m *Manager) SavePlayer(ctx context.Context, charID int64) error {
	if m.repo == nil {
		return nil
	}

	var errs []error
	for _, inst := range m.store.Player(charID) {
		if !inst.IsChanged() {
			continue
		}
		if err := m.persistErr(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveAll writes every changed instance in memory.
func (m *Manager) SaveAll(ctx context.Context) error {
	var errs []error
	for _, charID := range m.store.Characters() {
		if err := m.SavePlayer(ctx, charID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunAutosave flushes dirty instances every interval until ctx is done.
func (m *Manager) RunAutosave(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.SaveAll(ctx); err != nil {
				slog.Error("quest autosave failed", "error", err)
			}
		}
	}
}

// Shutdown stops all timers and flushes state.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.timers.Shutdown()
	return m.SaveAll(ctx)
}

// onEnteredWorld loads the player's quests and runs OnEnterWorld hooks of
// quests in progress (e.g. respawning clones).
func (m *Manager) onEnteredWorld(ctx context.Context, e *Event) error {
	p := e.Player
	if p == nil {
		return nil
	}
	if err := m.LoadPlayer(ctx, p.CharacterID()); err != nil {
		return err
	}

	var errs []error
	for _, inst := range m.store.Active(p.CharacterID()) {
		def := m.Definition(inst.QuestID())
		if def == nil {
			continue
		}
		if err := m.resume(ctx, p, def, inst, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) resume(ctx context.Context, p *model.Player, def *Definition, inst *Instance, e *Event) error {
	c := m.newContext(ctx, p, def, inst, e)
	err := func() error {
		inst.progress.Lock()
		defer inst.progress.Unlock()

		effects := def.OnEnterWorld[inst.Step()]
		if len(effects) == 0 {
			return nil
		}
		if _, err := applyEffects(c, effects); err != nil {
			c.after = nil
			return fmt.Errorf("resuming quest %d at step %d: %w", def.ID, inst.Step(), err)
		}
		return nil
	}()
	if err != nil {
		return err
	}
	c.runAfter()
	return nil
}

// onQuit saves the player's quests and revokes everything scoped to the
// player before returning, even if saving fails.
func (m *Manager) onQuit(ctx context.Context, e *Event) error {
	p := e.Player
	if p == nil {
		return nil
	}
	charID := p.CharacterID()
	scope := PlayerScope(charID)

	defer func() {
		hooks := m.bus.UnregisterScope(scope)
		timers := m.timers.CancelScope(scope)
		clones := m.actors.ReleaseAll(scope)
		m.clearOffers(charID)
		m.store.Unload(charID)

		slog.Debug("player quest scope revoked",
			"characterID", charID,
			"hooks", hooks,
			"timers", timers,
			"clones", clones)
	}()

	return m.SavePlayer(ctx, charID)
}

// onDialogResponse handles answers to quest offer and abort dialogs.
func (m *Manager) onDialogResponse(ctx context.Context, e *Event) error {
	p := e.Player
	if p == nil {
		return nil
	}

	switch e.Dialog {
	case DialogOffer:
		if !m.takeOffer(p.CharacterID(), e.QuestID) {
			return nil
		}
		if !e.Accept {
			if def := m.Definition(e.QuestID); def != nil {
				p.SendMessage(fmt.Sprintf("You decline the %s quest.", def.Name))
			}
			return nil
		}
		err := m.Accept(ctx, p, e.QuestID)
		if errors.Is(err, ErrIneligible) {
			slog.Debug("quest offer accepted by ineligible player",
				"questID", e.QuestID,
				"characterID", p.CharacterID(),
				"reason", err)
			return nil
		}
		return err

	case DialogAbort:
		if !e.Accept {
			return nil
		}
		err := m.Abort(ctx, p, e.QuestID)
		if errors.Is(err, ErrNotStarted) {
			return nil
		}
		return err
	}
	return nil
}

// offerHandler proposes the quest when an eligible player talks to its giver.
func (m *Manager) offerHandler(def *Definition) Handler {
	return func(_ context.Context, e *Event) error {
		p := e.Player
		if p == nil {
			return nil
		}
		if e.Kind == EventWhisper && !strings.EqualFold(e.Text, def.OfferKeyword) {
			return nil
		}
		if inst := m.store.Get(p.CharacterID(), def.ID); inst != nil && inst.IsActive() {
			return nil
		}
		if err := m.guard.Check(p, def); err != nil {
			slog.Debug("quest not offered",
				"questID", def.ID,
				"characterID", p.CharacterID(),
				"reason", err)
			return nil
		}

		m.offersMu.Lock()
		offered := m.offers[p.CharacterID()]
		if offered == nil {
			offered = make(map[int32]struct{}, 2)
			m.offers[p.CharacterID()] = offered
		}
		offered[def.ID] = struct{}{}
		m.offersMu.Unlock()

		text := def.OfferText
		if text == "" {
			text = "Will you take on this task?"
		}
		p.SendMessage(fmt.Sprintf("[%s] %s", def.Name, expand(text, p)))
		return nil
	}
}

// Offered reports whether the quest was proposed to the player and not yet answered.
func (m *Manager) Offered(charID int64, questID int32) bool {
	m.offersMu.Lock()
	defer m.offersMu.Unlock()
	_, ok := m.offers[charID][questID]
	return ok
}

func (m *Manager) takeOffer(charID int64, questID int32) bool {
	m.offersMu.Lock()
	defer m.offersMu.Unlock()
	if _, ok := m.offers[charID][questID]; !ok {
		return false
	}
	delete(m.offers[charID], questID)
	return true
}

func (m *Manager) clearOffer(charID int64, questID int32) {
	m.offersMu.Lock()
	defer m.offersMu.Unlock()
	delete(m.offers[charID], questID)
}

func (m *Manager) clearOffers(charID int64) {
	m.offersMu.Lock()
	defer m.offersMu.Unlock()
	delete(m.offers, charID)
}

// acquireClone resolves the player's clone of actor, sharing it with party
// members on the same quest. A freshly spawned clone gets its rows bound.
func (m *Manager) acquireClone(c *Context, actor string) (*ActorHandle, error) {
	spec := c.Def.Actor(actor)
	if spec == nil || !spec.Clone {
		return nil, fmt.Errorf("actor %q is not a clone of quest %d", actor, c.Def.ID)
	}

	charID := c.Player.CharacterID()
	req := CloneRequest{
		Name:    actor,
		Holder:  c.Scope(),
		Factory: SpawnClone(m.world, spec.descriptor()),
	}
	if party := c.Player.Party(); party != nil {
		req.Owner = GroupScope(party.ID()).ForQuest(c.Def.ID)
		for _, member := range party.Members() {
			memberID := member.CharacterID()
			if memberID == charID {
				continue
			}
			if inst := m.store.Get(memberID, c.Def.ID); inst != nil && inst.IsActive() {
				req.Peers = append(req.Peers, PlayerScope(memberID).ForQuest(c.Def.ID))
			}
		}
	}

	h, created, err := m.actors.AcquireClone(req)
	if err != nil {
		return nil, err
	}
	if created {
		m.bindClone(c.Def, h)
	}
	return h, nil
}

// bindClone registers the rows addressed to a clone on its object ID.
// The registrations die with the clone.
func (m *Manager) bindClone(def *Definition, h *ActorHandle) {
	byKind := make(map[EventKind][]int, 2)
	var kinds []EventKind
	for i, t := range def.Transitions {
		if t.Actor != h.Name() {
			continue
		}
		if _, seen := byKind[t.Kind]; !seen {
			kinds = append(kinds, t.Kind)
		}
		byKind[t.Kind] = append(byKind[t.Kind], i)
	}
	for _, kind := range kinds {
		m.bus.Register(h.ObjectID(), kind, h.HookScope(), def.ID, m.machineHandler(def, byKind[kind]))
	}
}

// watch registers a player-scoped handler for the quest.
func (m *Manager) watch(p *model.Player, def *Definition, kind EventKind, fn func(c *Context) error) Registration {
	charID := p.CharacterID()
	scope := PlayerScope(charID).ForQuest(def.ID)

	return m.bus.Register(Global, kind, scope, def.ID, func(ctx context.Context, e *Event) error {
		if e.Player == nil || e.Player.CharacterID() != charID {
			return nil
		}
		inst := m.store.Get(charID, def.ID)
		if inst == nil || !inst.IsActive() {
			return nil
		}
		c := m.newContext(ctx, e.Player, def, inst, e)
		if err := fn(c); err != nil {
			return err
		}
		c.runAfter()
		return nil
	})
}

// advanceGroup moves party members of p from step from to step to.
func (m *Manager) advanceGroup(ctx context.Context, p *model.Player, def *Definition, from, to int) {
	party := p.Party()
	if party == nil || to <= 0 {
		return
	}
	for _, member := range party.Members() {
		if member.CharacterID() == p.CharacterID() {
			continue
		}
		inst := m.store.Get(member.CharacterID(), def.ID)
		if inst == nil || !inst.compareAndSetStep(from, to, time.Now()) {
			continue
		}
		m.persist(ctx, inst)

		slog.Debug("quest step advanced with group",
			"questID", def.ID,
			"characterID", member.CharacterID(),
			"from", from,
			"to", to)
	}
}

// cue turns a scripted beat into a scheduler cue.
func (m *Manager) cue(c *Context, b Beat) (Cue, error) {
	p, def := c.Player, c.Def
	ctx := context.WithoutCancel(c.ctx)

	var h *ActorHandle
	if b.Actor != "" {
		h = c.Actor(b.Actor)
		if h == nil {
			return Cue{}, fmt.Errorf("actor %q: %w", b.Actor, ErrActorDead)
		}
	}

	switch {
	case b.Discard:
		if h == nil {
			return Cue{}, errors.New("discard beat without actor")
		}
		// Без привязки к актору: Discard сам берёт его блокировку
		return Cue{Delay: b.Delay, Fn: func() { m.actors.Discard(h) }}, nil

	case b.Finish:
		return Cue{Delay: b.Delay, Fn: func() {
			if b.Message != "" {
				p.SendMessage(expand(b.Message, p))
			}
			if err := m.Finish(ctx, p, def.ID); err != nil && !errors.Is(err, ErrNotStarted) {
				slog.Warn("scheduled finish failed", "questID", def.ID, "characterID", p.CharacterID(), "error", err)
			}
		}}, nil
	}

	cue := Cue{Delay: b.Delay, Fn: func() {
		if b.Run != nil && h != nil {
			b.Run(h.Entity())
		}
		if b.Message != "" {
			p.SendMessage(expand(b.Message, p))
		}
	}}
	if h != nil {
		cue.Entity = h
	}
	return cue, nil
}
