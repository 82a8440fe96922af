package quests

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/realmquest/internal/game/quest"
)

// Builtin creates the Go-coded quests.
func Builtin() []*quest.Definition {
	return []*quest.Definition{
		NewDelivery(),     // Important Delivery
		NewCulmination(),  // Culmination
		NewFerryPassage(), // Passage to Ludlow
	}
}

// RegisterAll registers the built-in quests and the YAML tables found in
// scriptsDir (empty = built-ins only). A quest that fails to load is logged
// and skipped; the others still load. Returns the number registered and the
// joined load errors.
func RegisterAll(m *quest.Manager, scriptsDir string) (int, error) {
	defs := Builtin()

	var errs []error
	if scriptsDir != "" {
		loaded, err := LoadDefinitions(scriptsDir)
		if err != nil {
			errs = append(errs, err)
		}
		defs = append(defs, loaded...)
	}

	registered := 0
	for _, def := range defs {
		if err := m.RegisterQuest(def); err != nil {
			slog.Error("quest skipped", "questID", def.ID, "questName", def.Name, "error", err)
			errs = append(errs, fmt.Errorf("register quest %q (ID=%d): %w", def.Name, def.ID, err))
			continue
		}
		registered++
	}

	slog.Info("quests registered", "count", registered, "failed", len(defs)-registered)
	return registered, errors.Join(errs...)
}
