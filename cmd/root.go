// Package cmd provides the CLI commands for the library tracker.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"library-tracking/config"
	"library-tracking/library"
)

var (
	cfg    config.Config
	dbPath string
)

func setupLogger(level string) {
	var lv slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lv = slog.LevelDebug
	case "WARN", "WARNING":
		lv = slog.LevelWarn
	case "ERROR":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})
	slog.SetDefault(slog.New(handler))
}

var rootCmd = &cobra.Command{
	Use:   "libtrack",
	Short: "Track a library's book inventory and borrow/return lifecycle",
	Long: `Libtrack manages a library's book inventory and circulation on a local
SQLite database.

Examples:
  libtrack add "Dune" "Frank Herbert" 1965
  libtrack borrow 1 --name Alice --email a@x.com
  libtrack return 3
  libtrack import borrows.csv
  libtrack export LibraryData.csv`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		setupLogger(cfg.LogLevel)
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default from LIBRARY_DB)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(borrowCmd)
	rootCmd.AddCommand(returnCmd)
	rootCmd.AddCommand(borrowsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

// openManager opens the configured database; callers must Close it.
func openManager() (*library.LibraryManager, error) {
	slog.Debug("opening database", "path", cfg.DBPath)
	mgr, err := library.NewLibraryManager(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	mgr.LoanPeriod = time.Duration(cfg.LoanPeriodDays) * 24 * time.Hour
	return mgr, nil
}
