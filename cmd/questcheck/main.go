// Command questcheck validates YAML quest tables without starting a server.
//
//	questcheck data/quests other/quests
//
// Exits with status 1 if any table fails to parse or validate.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/udisondev/realmquest/internal/game/quest/quests"
	"github.com/udisondev/realmquest/internal/logger"
)

func main() {
	verbose := flag.Bool("v", false, "log every loaded quest")
	flag.Parse()

	level := "WARN"
	if *verbose {
		level = "DEBUG"
	}
	cfg := logger.DefaultConfig()
	cfg.Level = level
	if _, err := logger.Setup(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	dirs := flag.Args()
	if len(dirs) == 0 {
		dirs = []string{"data/quests"}
	}

	os.Exit(check(dirs))
}

// check validates every directory and returns the exit status.
func check(dirs []string) int {
	status := 0
	total := 0
	for _, dir := range dirs {
		defs, err := quests.LoadDefinitions(dir)
		for _, def := range defs {
			slog.Debug("quest ok", "questID", def.ID, "questName", def.Name, "steps", len(def.Transitions))
		}
		total += len(defs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s:\n%v\n", dir, err)
			status = 1
		}
	}
	fmt.Printf("%d quest table(s) valid\n", total)
	return status
}
