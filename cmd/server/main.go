/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the journal engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (defaults, YAML file, environment)
  3. Build the initial ledger snapshot
  4. Initialize SQLite audit store
  5. Start the query evaluator session (degraded mode if missing)
  6. Start the file watcher
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config        Configuration file path (default: journal.yaml)
  -ledger        Ledger file path (overrides config)
  -port          HTTP server port (overrides config)
  -db            SQLite audit database path (overrides config)
                 Use ":memory:" for in-memory database
  -no-backup     Disable pre-mutation backups
  -max-backups   Keep only the N newest backups (0 = keep all)
  -validate-only Parse the ledger, print counts or problems, exit

DEGRADED MODE:
  When no query evaluator can be detected at startup, the server logs a
  warning and keeps running: entry CRUD works, query endpoints report a
  fatal outcome with install guidance.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the watcher, the evaluator session, and the audit store
  4. Exit

EXAMPLES:
  # Run against a ledger file
  ./server -ledger="./data/main.ledger"

  # Run with in-memory audit database
  ./server -db=":memory:"

  # Check a file without serving
  ./server -ledger="./data/main.ledger" -validate-only

ENVIRONMENT:
  JOURNAL_* variables override the config file; a .env file is loaded
  when present. See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - ledger/ledger.go: The mutation façade wired here
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/draftmark/journal-engine/api"
	"github.com/draftmark/journal-engine/beanquery"
	"github.com/draftmark/journal-engine/config"
	"github.com/draftmark/journal-engine/journal"
	"github.com/draftmark/journal-engine/ledger"
	"github.com/draftmark/journal-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "journal.yaml", "Configuration file path")
	ledgerPath := flag.String("ledger", "", "Ledger file path (overrides config)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite audit database path (overrides config)")
	noBackup := flag.Bool("no-backup", false, "Disable pre-mutation backups")
	maxBackups := flag.Int("max-backups", -1, "Keep only the N newest backups, 0 keeps all (overrides config)")
	validateOnly := flag.Bool("validate-only", false, "Parse the ledger, print counts or problems, and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags win over file and environment
	if *ledgerPath != "" {
		cfg.LedgerPath = *ledgerPath
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *noBackup {
		cfg.BackupEnabled = false
	}
	if *maxBackups >= 0 {
		cfg.MaxBackups = *maxBackups
	}

	if cfg.LedgerPath == "" {
		log.Fatal("No ledger file configured; set -ledger, ledger_path, or JOURNAL_LEDGER_PATH")
	}

	if *validateOnly {
		os.Exit(validate(cfg.LedgerPath))
	}

	// Initialize audit store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize audit database: %v", err)
	}
	defer store.Close()

	// Start the evaluator session. Detection failure disables queries but
	// does not abort the server.
	var (
		session *beanquery.Session
		engine  *beanquery.Engine
	)
	evalCmd := cfg.EvaluatorCommand
	if evalCmd == "" && cfg.Compat == config.CompatOn {
		evalCmd = "wsl bean-query"
	}
	session, err = beanquery.Start(context.Background(), beanquery.Config{
		LedgerPath: cfg.LedgerPath,
		Command:    evalCmd,
		Timeout:    time.Duration(cfg.QueryTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		log.Printf("Warning: no query evaluator found, query endpoints disabled: %v", err)
		session = nil
	} else {
		log.Printf("Query evaluator: %s (version %s, compat=%v)",
			session.Command()[0], session.Version(), session.Compat())
		engine = beanquery.NewEngine(session)
	}

	// Ledger façade over the journal file
	ldg := ledger.New(cfg.LedgerPath, ledger.Options{
		DisableBackup: !cfg.BackupEnabled,
		MaxBackups:    cfg.MaxBackups,
		Engine:        engine,
		Audit:         store,
	})
	if snap, err := ldg.Reload(); err != nil {
		log.Fatalf("Failed to read ledger file: %v", err)
	} else {
		log.Printf("Loaded %s: %d entries", cfg.LedgerPath, len(snap.Directives))
		for _, p := range snap.Problems {
			log.Printf("Warning: %s", p)
		}
	}

	// Invalidate the cached snapshot when the file changes behind us
	var watcher *journal.Watcher
	if cfg.WatchEnabled {
		watcher, err = journal.WatchFile(cfg.LedgerPath, 0, ldg.MarkStale)
		if err != nil {
			log.Printf("Warning: file watcher disabled: %v", err)
		}
	}

	// Create router
	handler := api.NewHandler(ldg, session, store)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://%s:%d", cfg.Host, cfg.Port)
		log.Printf("📊 API available at http://%s:%d/api", cfg.Host, cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if watcher != nil {
		watcher.Close()
	}
	if session != nil {
		session.Stop()
	}

	log.Println("Server stopped")
}

// validate parses the ledger file and reports per-kind counts, or the
// parse problems if there are any. The exit code distinguishes the two.
func validate(path string) int {
	snap, err := journal.BuildSnapshot(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if len(snap.Problems) > 0 {
		for _, p := range snap.Problems {
			fmt.Fprintf(os.Stderr, "%s: %s\n", path, p)
		}
		return 1
	}

	counts := make(map[journal.Kind]int)
	for _, d := range snap.Directives {
		counts[d.Kind]++
	}
	fmt.Printf("%s: %d entries\n", path, len(snap.Directives))
	for _, kind := range []journal.Kind{
		journal.KindTransaction, journal.KindBalance, journal.KindNote,
		journal.KindPad, journal.KindOpen, journal.KindClose, journal.KindCommodity,
	} {
		if n := counts[kind]; n > 0 {
			fmt.Printf("  %-12s %d\n", kind, n)
		}
	}
	return 0
}
