package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/realmquest/internal/config"
	"github.com/udisondev/realmquest/internal/data"
	"github.com/udisondev/realmquest/internal/db"
	"github.com/udisondev/realmquest/internal/game/quest"
	"github.com/udisondev/realmquest/internal/game/quest/quests"
	"github.com/udisondev/realmquest/internal/logger"
	"github.com/udisondev/realmquest/internal/world"
)

const statsInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "path to questserver.yaml (default $REALMQUEST_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.ResolvePath(*configPath)); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	// Конфиг первым: от него зависит уровень логов
	cfg, err := config.LoadQuestServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCloser, err := logger.Setup(cfg.Logging)
	if err != nil {
		return fmt.Errorf("configuring logger: %w", err)
	}
	defer logCloser.Close()

	slog.Info("realmquest server starting",
		"config", cfgPath,
		"driver", cfg.Database.Driver,
		"logLevel", cfg.Logging.Level)

	repo, closeRepo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeRepo()

	items := data.NewItemTable()
	if err := items.LoadItemTemplates(cfg.Quests.ItemsFile); err != nil {
		return fmt.Errorf("loading item templates: %w", err)
	}

	w := world.New()
	mgr := quest.NewManager(repo, w, items)

	registered, err := quests.RegisterAll(mgr, cfg.Quests.ScriptsDir)
	if err != nil {
		// Сломанный квест не мешает остальным
		slog.Warn("some quests failed to load", "registered", registered, "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Quests.AutosaveInterval > 0 {
		g.Go(func() error {
			slog.Info("starting quest autosave", "interval", cfg.Quests.AutosaveInterval)
			return mgr.RunAutosave(gctx, cfg.Quests.AutosaveInterval)
		})
	}

	g.Go(func() error {
		reportStats(gctx, mgr, statsInterval)
		return nil
	})

	slog.Info("quest server ready", "quests", mgr.QuestCount())

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
	}

	// Финальный flush со своим дедлайном: ctx уже отменён
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer cancel()

	if err := mgr.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("flushing quest state: %w", err)
	}

	slog.Info("quest server stopped")
	return nil
}

// openRepository connects the configured store and applies migrations.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (quest.Repository, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		slog.Info("database connected", "driver", cfg.Driver, "path", cfg.Path)
		return db.NewSQLiteQuestRepository(sqlDB), func() { _ = sqlDB.Close() }, nil

	default:
		database, err := db.New(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := db.RunPoolMigrations(ctx, database.Pool()); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database connected", "driver", cfg.Driver)
		return db.NewQuestRepository(database.Pool()), database.Close, nil
	}
}

// reportStats periodically logs engine counters until ctx is done.
func reportStats(ctx context.Context, mgr *quest.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fired, skipped := mgr.Scheduler().Stats()
			created, tornDown := mgr.Actors().Stats()
			slog.Info("quest engine stats",
				"players", len(mgr.Store().Characters()),
				"activeTimers", mgr.Scheduler().ActiveCount(),
				"cuesFired", fired,
				"cuesSkipped", skipped,
				"clonesCreated", created,
				"clonesTornDown", tornDown)
		}
	}
}
