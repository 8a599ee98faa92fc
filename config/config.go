/*
Package config loads server configuration.

PURPOSE:
  One Config struct fed from three layers, lowest precedence first:

    1. built-in defaults
    2. a YAML file (journal.yaml by default; absent file means defaults)
    3. environment variables (a .env file is loaded first if present)

  Command-line flags are applied on top by cmd/server, so the final
  precedence a user sees is flags > env > file > defaults.

ENVIRONMENT VARIABLES:
  JOURNAL_LEDGER_PATH, JOURNAL_HOST, JOURNAL_PORT, JOURNAL_DB_PATH,
  JOURNAL_BACKUP_ENABLED, JOURNAL_MAX_BACKUPS, JOURNAL_EVALUATOR_COMMAND,
  JOURNAL_COMPAT_MODE, JOURNAL_QUERY_TIMEOUT_MS, JOURNAL_WATCH_ENABLED

SEE ALSO:
  - cmd/server/main.go: flag overrides and validation-only mode
*/
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// CompatMode controls the sandboxed-Linux compatibility layer used to run
// the evaluator on a Windows host.
type CompatMode string

const (
	CompatAuto CompatMode = "auto" // decided by evaluator detection
	CompatOn   CompatMode = "on"
	CompatOff  CompatMode = "off"
)

// Config is the complete server configuration.
type Config struct {
	// LedgerPath is the absolute path of the journal file. Required.
	LedgerPath string `yaml:"ledger_path"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// DBPath is the SQLite mutation audit database. ":memory:" works.
	DBPath string `yaml:"db_path"`

	// BackupEnabled controls the pre-mutation backup copy.
	BackupEnabled bool `yaml:"backup_enabled"`

	// MaxBackups keeps only the newest N backups; 0 keeps all.
	MaxBackups int `yaml:"max_backups"`

	// EvaluatorCommand overrides evaluator autodetection (whitespace-
	// separated argv). Empty probes the default candidates.
	EvaluatorCommand string `yaml:"evaluator_command"`

	// Compat forces the compatibility layer on or off; auto lets
	// detection decide.
	Compat CompatMode `yaml:"compat_mode"`

	// QueryTimeoutMs bounds one evaluator invocation.
	QueryTimeoutMs int `yaml:"query_timeout_ms"`

	// WatchEnabled turns on the ledger file watcher.
	WatchEnabled bool `yaml:"watch_enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           5001,
		DBPath:         "journal.db",
		BackupEnabled:  true,
		MaxBackups:     0,
		Compat:         CompatAuto,
		QueryTimeoutMs: 30000,
		WatchEnabled:   true,
	}
}

// Load builds the configuration from defaults, the YAML file at path, and
// environment variables, in that order. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults apply
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := cfg.check(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.LedgerPath, "JOURNAL_LEDGER_PATH")
	setString(&cfg.Host, "JOURNAL_HOST")
	setInt(&cfg.Port, "JOURNAL_PORT")
	setString(&cfg.DBPath, "JOURNAL_DB_PATH")
	setBool(&cfg.BackupEnabled, "JOURNAL_BACKUP_ENABLED")
	setInt(&cfg.MaxBackups, "JOURNAL_MAX_BACKUPS")
	setString(&cfg.EvaluatorCommand, "JOURNAL_EVALUATOR_COMMAND")
	if v := os.Getenv("JOURNAL_COMPAT_MODE"); v != "" {
		cfg.Compat = CompatMode(v)
	}
	setInt(&cfg.QueryTimeoutMs, "JOURNAL_QUERY_TIMEOUT_MS")
	setBool(&cfg.WatchEnabled, "JOURNAL_WATCH_ENABLED")
}

func (c Config) check() error {
	switch c.Compat {
	case CompatAuto, CompatOn, CompatOff:
	default:
		return fmt.Errorf("compat_mode %q is not auto, on, or off", c.Compat)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if c.QueryTimeoutMs < 0 {
		return fmt.Errorf("query_timeout_ms must not be negative")
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("max_backups must not be negative")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
