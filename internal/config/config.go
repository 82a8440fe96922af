// Package config loads the quest server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/realmquest/internal/logger"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Environment overrides.
const (
	EnvConfigPath = "REALMQUEST_CONFIG"
	EnvDBDriver   = "REALMQUEST_DB_DRIVER"
	EnvDBDSN      = "REALMQUEST_DB_DSN"
	EnvLogLevel   = "LOG_LEVEL"
)

// DefaultPath is used when neither a flag nor REALMQUEST_CONFIG names a file.
const DefaultPath = "config/questserver.yaml"

// QuestServer holds all configuration for the quest server.
type QuestServer struct {
	Database  DatabaseConfig  `yaml:"database"`
	Logging   logger.Config   `yaml:"logging"`
	Quests    QuestsConfig    `yaml:"quests"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// DatabaseConfig holds storage parameters.
// Driver selects PostgreSQL (pgx) or an embedded SQLite file.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`

	// PostgreSQL; URL overrides the separate fields when set
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// SQLite
	Path string `yaml:"path"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// QuestsConfig holds quest content locations and persistence cadence.
type QuestsConfig struct {
	ScriptsDir       string        `yaml:"scripts_dir"`       // YAML step tables
	ItemsFile        string        `yaml:"items_file"`        // item templates
	AutosaveInterval time.Duration `yaml:"autosave_interval"` // 0 disables autosave
}

// SchedulerConfig holds timer settings.
type SchedulerConfig struct {
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // final flush deadline
}

// DefaultQuestServer returns QuestServer config with sensible defaults.
func DefaultQuestServer() QuestServer {
	return QuestServer{
		Database: DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "realmquest",
			Password: "realmquest",
			DBName:   "realmquest",
			SSLMode:  "disable",
			Path:     "data/quests.db",
		},
		Logging: logger.DefaultConfig(),
		Quests: QuestsConfig{
			ScriptsDir:       "data/quests",
			ItemsFile:        "data/items.yaml",
			AutosaveInterval: 5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// LoadQuestServer loads quest server config from a YAML file and applies
// environment overrides. If the file doesn't exist, returns defaults.
func LoadQuestServer(path string) (QuestServer, error) {
	cfg := DefaultQuestServer()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolvePath picks the config file: explicit flag, then REALMQUEST_CONFIG, then DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultPath
}

func applyEnv(cfg *QuestServer) {
	if v := os.Getenv(EnvDBDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv(EnvDBDSN); v != "" {
		// Для sqlite DSN — путь к файлу
		if cfg.Database.Driver == DriverSQLite {
			cfg.Database.Path = v
		} else {
			cfg.Database.URL = v
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks values the server cannot start with.
func (c QuestServer) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown database.driver %q (want %q or %q)", c.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Quests.AutosaveInterval < 0 {
		return fmt.Errorf("quests.autosave_interval must not be negative")
	}
	if c.Scheduler.ShutdownTimeout <= 0 {
		return fmt.Errorf("scheduler.shutdown_timeout must be positive")
	}
	return nil
}
