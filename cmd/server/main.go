/*
main.go - Application entry point

PURPOSE:
  CLI for the extra-hours service. Loads configuration, builds the store
  and service, and dispatches to a subcommand.

COMMANDS:
  serve        Run the HTTP API (and the recalculation scheduler)
  recalculate  Run the recalculation job once and exit
  token        Issue a development bearer token

GLOBAL FLAGS:
  --env-file   .env file to load (default: .env, missing is fine)
  --db         SQLite database path, overrides DB_PATH
               Use ":memory:" for an in-memory database
  --log-level  overrides LOG_LEVEL

EXAMPLES:
  # Run with file database
  ./server serve --db=./data/extrahours.db

  # Issue a token for local testing
  JWT_SECRET=dev ./server token --user alice --email alice@example.com

  # One-off recalculation (e.g. from an external cron)
  ./server recalculate

ENVIRONMENT:
  See config/config.go for every variable.

SEE ALSO:
  - api/server.go: Router configuration
  - overtime/service.go: Core operations
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/extrahours/config"
	"github.com/warp/extrahours/overtime"
	"github.com/warp/extrahours/store/sqlite"
)

var (
	envFile  string
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Extra-hours ledger service",
	Long: `Tracks work sessions, derives the extra hours worked beyond the
standard 8-hour day and validates how those hours are spent.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, recalculateCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig applies global flag overrides on top of the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = dbPath
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

// openService builds the store and service. Close the returned store.
func openService(cfg config.Config, logger *slog.Logger) (*sqlite.Store, *overtime.Service, error) {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}
	return store, overtime.NewService(store, logger), nil
}
