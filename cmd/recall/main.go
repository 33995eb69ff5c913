package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iammorganparry/recall/internal/config"
	"github.com/iammorganparry/recall/internal/knowledge"
	"github.com/iammorganparry/recall/internal/mcp"
	"github.com/iammorganparry/recall/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Local knowledge store for agent sessions",
	Long: "recall persists memories, skill usage, failure patterns and session context\n" +
		"in a single SQLite database and serves them over an MCP stdio interface.",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP stdio server",
	RunE:  runServe,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics as JSON",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, opens the database and wires the service. The DB
// handle is constructed once here and injected into every store.
func setup() (*knowledge.Service, *store.DB, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	// stdout carries the protocol stream, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	svc := knowledge.NewService(
		store.NewMemoryStore(db),
		store.NewSkillStore(db),
		store.NewFailureStore(db),
		store.NewContextStore(db),
		logger,
	)
	return svc, db, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, db, logger, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	server := mcp.NewServer(svc, os.Stdin, os.Stdout, logger)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	logger.Info("recall server started")
	select {
	case sig := <-done:
		logger.Info("shutting down", "signal", sig.String())
		return nil
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		return err
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, db, _, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := svc.Stats()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
