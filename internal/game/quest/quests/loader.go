package quests

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/realmquest/internal/game/quest"
	"github.com/udisondev/realmquest/internal/model"
)

// questFile is the YAML shape of a declarative quest table.
type questFile struct {
	ID             int32               `yaml:"id"`
	Name           string              `yaml:"name"`
	MinLevel       int32               `yaml:"min_level"`
	MaxLevel       int32               `yaml:"max_level"`
	MaxCompletions int                 `yaml:"max_completions"`
	Prerequisites  []int32             `yaml:"prerequisites"`
	Realm          string              `yaml:"realm"`
	Classes        []int32             `yaml:"classes"`
	Revalidate     bool                `yaml:"revalidate"`
	Giver          string              `yaml:"giver"`
	OfferKeyword   string              `yaml:"offer_keyword"`
	OfferText      string              `yaml:"offer_text"`
	Actors         []actorDef          `yaml:"actors"`
	OnAccept       []effectDef         `yaml:"on_accept"`
	OnEnterWorld   map[int][]effectDef `yaml:"on_enter_world"`
	Steps          []stepDef           `yaml:"steps"`
	Rewards        []effectDef         `yaml:"rewards"`
	Reversals      []effectDef         `yaml:"reversals"`
	QuestItems     []int32             `yaml:"quest_items"`
}

type actorDef struct {
	Name       string       `yaml:"name"`
	Npc        string       `yaml:"npc"` // world name, defaults to Name
	Clone      bool         `yaml:"clone"`
	Realm      string       `yaml:"realm"`
	Guild      string       `yaml:"guild"`
	Level      int32        `yaml:"level"`
	Model      int32        `yaml:"model"`
	Aggressive bool         `yaml:"aggressive"`
	Location   *locationDef `yaml:"location"`
}

type locationDef struct {
	Region  uint16 `yaml:"region"`
	X       int32  `yaml:"x"`
	Y       int32  `yaml:"y"`
	Z       int32  `yaml:"z"`
	Heading uint16 `yaml:"heading"`
}

type stepDef struct {
	Step    int         `yaml:"step"`
	On      string      `yaml:"on"`
	Actor   string      `yaml:"actor"`
	Target  string      `yaml:"target"`
	Item    int32       `yaml:"item"`
	Text    string      `yaml:"text"`
	Effects []effectDef `yaml:"effects"`
	Next    nextStep    `yaml:"next"`
}

// nextStep accepts a step number or one of "stay", "finished", "aborted".
type nextStep int

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *nextStep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: next must be a scalar", value.Line)
	}
	switch strings.ToLower(value.Value) {
	case "", "stay":
		*n = quest.StepStay
	case "finished", "finish":
		*n = quest.StepFinished
	case "aborted", "abort":
		*n = quest.StepAborted
	default:
		v, err := strconv.Atoi(value.Value)
		if err != nil || v < 1 {
			return fmt.Errorf("line %d: invalid next step %q", value.Line, value.Value)
		}
		*n = nextStep(v)
	}
	return nil
}

type itemRef struct {
	ID    int32 `yaml:"id"`
	Count int64 `yaml:"count"`
}

func (r *itemRef) count() int64 {
	if r.Count <= 0 {
		return 1
	}
	return r.Count
}

type sayDef struct {
	Actor string `yaml:"actor"`
	Text  string `yaml:"text"`
}

type flagDef struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type moneyRange struct {
	Base   int64 `yaml:"base"`
	Spread int64 `yaml:"spread"`
}

type advanceDef struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// effectDef is one effect entry; exactly one field must be set.
type effectDef struct {
	GiveItem     *itemRef    `yaml:"give_item"`
	RemoveItem   *itemRef    `yaml:"remove_item"`
	Experience   int64       `yaml:"experience"`
	Money        int64       `yaml:"money"`
	MoneyBetween *moneyRange `yaml:"money_between"`
	TakeMoney    int64       `yaml:"take_money"`
	Say          *sayDef     `yaml:"say"`
	Message      string      `yaml:"message"`
	Flag         *flagDef    `yaml:"flag"`
	AcquireClone string      `yaml:"acquire_clone"`
	ReleaseClone string      `yaml:"release_clone"`
	AdvanceGroup *advanceDef `yaml:"advance_group"`
	CancelTimers bool        `yaml:"cancel_timers"`
	Finish       bool        `yaml:"finish"`
	Abort        bool        `yaml:"abort"`
}

func (d *effectDef) build() (quest.Effect, error) {
	var built []quest.Effect
	if d.GiveItem != nil {
		built = append(built, quest.GiveItem(d.GiveItem.ID, d.GiveItem.count()))
	}
	if d.RemoveItem != nil {
		built = append(built, quest.RemoveItem(d.RemoveItem.ID, d.RemoveItem.count()))
	}
	if d.Experience != 0 {
		built = append(built, quest.GainExperience(d.Experience))
	}
	if d.Money != 0 {
		built = append(built, quest.AddMoney(d.Money))
	}
	if d.MoneyBetween != nil {
		built = append(built, payBetween(d.MoneyBetween.Base, d.MoneyBetween.Spread))
	}
	if d.TakeMoney != 0 {
		built = append(built, quest.TakeMoney(d.TakeMoney))
	}
	if d.Say != nil {
		built = append(built, quest.Say(d.Say.Actor, d.Say.Text))
	}
	if d.Message != "" {
		built = append(built, quest.Message(d.Message))
	}
	if d.Flag != nil {
		built = append(built, quest.SetFlag(d.Flag.Key, d.Flag.Value))
	}
	if d.AcquireClone != "" {
		built = append(built, quest.AcquireClone(d.AcquireClone))
	}
	if d.ReleaseClone != "" {
		built = append(built, quest.ReleaseClone(d.ReleaseClone))
	}
	if d.AdvanceGroup != nil {
		built = append(built, quest.AdvanceGroup(d.AdvanceGroup.From, d.AdvanceGroup.To))
	}
	if d.CancelTimers {
		built = append(built, quest.CancelTimers())
	}
	if d.Finish {
		built = append(built, quest.FinishLater())
	}
	if d.Abort {
		built = append(built, quest.AbortLater())
	}

	if len(built) != 1 {
		return nil, fmt.Errorf("effect entry must set exactly one effect, got %d", len(built))
	}
	return built[0], nil
}

func buildEffects(defs []effectDef, where string) ([]quest.Effect, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]quest.Effect, 0, len(defs))
	for i := range defs {
		eff, err := defs[i].build()
		if err != nil {
			return nil, fmt.Errorf("%s effect %d: %w", where, i, err)
		}
		out = append(out, eff)
	}
	return out, nil
}

func parseRealm(s string) (model.Realm, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return model.RealmNone, nil
	case "albion":
		return model.RealmAlbion, nil
	case "midgard":
		return model.RealmMidgard, nil
	case "hibernia":
		return model.RealmHibernia, nil
	}
	return 0, fmt.Errorf("unknown realm %q", s)
}

// ParseDefinition builds a quest definition from a YAML table.
func ParseDefinition(raw []byte) (*quest.Definition, error) {
	var f questFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding quest table: %w", err)
	}

	def := &quest.Definition{
		ID:             f.ID,
		Name:           f.Name,
		MinLevel:       f.MinLevel,
		MaxLevel:       f.MaxLevel,
		MaxCompletions: f.MaxCompletions,
		Prerequisites:  f.Prerequisites,
		Revalidate:     f.Revalidate,
		Giver:          f.Giver,
		OfferKeyword:   f.OfferKeyword,
		OfferText:      f.OfferText,
		QuestItems:     f.QuestItems,
	}

	var errs []error

	if f.Realm != "" {
		realm, err := parseRealm(f.Realm)
		if err != nil {
			errs = append(errs, err)
		} else {
			def.Accessible = inRealm(realm)
		}
	}
	if len(f.Classes) > 0 {
		classes := slices.Clone(f.Classes)
		def.Override = func(p *model.Player) bool {
			return slices.Contains(classes, p.ClassID())
		}
	}

	for i, a := range f.Actors {
		realm, err := parseRealm(a.Realm)
		if err != nil {
			errs = append(errs, fmt.Errorf("actor %d: %w", i, err))
		}
		spec := quest.ActorSpec{
			Name:  a.Name,
			Clone: a.Clone,
			Desc: model.NpcDescriptor{
				Name:       a.Npc,
				GuildName:  a.Guild,
				Realm:      realm,
				Model:      a.Model,
				Level:      a.Level,
				Aggressive: a.Aggressive,
			},
		}
		if a.Location != nil {
			spec.Desc.Location = model.NewLocation(a.Location.Region, a.Location.X, a.Location.Y, a.Location.Z, a.Location.Heading)
		}
		def.Actors = append(def.Actors, spec)
	}

	var err error
	if def.OnAccept, err = buildEffects(f.OnAccept, "on_accept"); err != nil {
		errs = append(errs, err)
	}
	if def.Rewards, err = buildEffects(f.Rewards, "rewards"); err != nil {
		errs = append(errs, err)
	}
	if def.Reversals, err = buildEffects(f.Reversals, "reversals"); err != nil {
		errs = append(errs, err)
	}
	if len(f.OnEnterWorld) > 0 {
		def.OnEnterWorld = make(map[int][]quest.Effect, len(f.OnEnterWorld))
		for step, effs := range f.OnEnterWorld {
			built, err := buildEffects(effs, fmt.Sprintf("on_enter_world[%d]", step))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			def.OnEnterWorld[step] = built
		}
	}

	for i, s := range f.Steps {
		kind, ok := quest.ParseEventKind(s.On)
		if !ok {
			errs = append(errs, fmt.Errorf("step row %d: unknown event %q", i, s.On))
			continue
		}
		effects, err := buildEffects(s.Effects, fmt.Sprintf("step row %d", i))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		def.Transitions = append(def.Transitions, quest.Transition{
			Step:    s.Step,
			Kind:    kind,
			Actor:   s.Actor,
			Target:  s.Target,
			ItemID:  s.Item,
			Text:    s.Text,
			Effects: effects,
			Next:    int(s.Next),
		})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("quest %d %q: %w", f.ID, f.Name, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("quest %d %q: %w", f.ID, f.Name, err)
	}
	return def, nil
}

// LoadDefinitionFile reads one YAML quest table.
func LoadDefinitionFile(path string) (*quest.Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading quest table %s: %w", path, err)
	}
	def, err := ParseDefinition(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// LoadDefinitions reads every *.yaml and *.yml table in dir, in name order.
// Broken tables are reported in the joined error; the rest are returned.
// A missing directory yields no definitions and no error.
func LoadDefinitions(dir string) ([]*quest.Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("quest script directory not found", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("reading quest directory %s: %w", dir, err)
	}

	var (
		defs []*quest.Definition
		errs []error
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
		default:
			continue
		}
		def, err := LoadDefinitionFile(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}

	return defs, errors.Join(errs...)
}
