package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/logging"
	"github.com/conorfennell/knoldeck/internal/storage"
	"github.com/conorfennell/knoldeck/internal/sync"
	"github.com/conorfennell/knoldeck/internal/web"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "knoldeck:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	defaults := config.Default()

	flags := pflag.NewFlagSet("knoldeck", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to the YAML config file")
	flags.String("http_address", defaults.HTTPAddress, "address to serve the web UI on")
	flags.String("database_path", defaults.DatabasePath, "path to the SQLite database file")
	flags.String("log_level", defaults.LogLevel, "log level (debug, info, warn, error)")
	addSource := flags.String("add-source", "", "register a card source (path or git URL) and exit")
	syncNow := flags.Bool("sync", false, "sync all sources before serving")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database opened", zap.String("path", cfg.DatabasePath))

	if *addSource != "" {
		return registerSource(db, logger, *addSource)
	}

	syncer := sync.New(db, logger, "repos")
	if *syncNow {
		if err := syncer.Run(time.Now()); err != nil {
			return err
		}
	}

	server, err := web.NewServer(db, cfg, logger, syncer)
	if err != nil {
		return err
	}

	logger.Info("serving", zap.String("address", cfg.HTTPAddress))
	return http.ListenAndServe(cfg.HTTPAddress, server)
}

// registerSource records a new card source, classifying git URLs by shape.
func registerSource(db *storage.DB, logger *zap.Logger, path string) error {
	existing, err := db.FindSourceByPath(path)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info("source already registered", zap.String("path", path))
		return nil
	}

	sourceType := "local"
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") || strings.HasPrefix(path, "https://") {
		sourceType = "git"
	}
	id, err := db.InsertSource(path, sourceType)
	if err != nil {
		return err
	}
	logger.Info("source registered", zap.Int64("id", id), zap.String("type", sourceType), zap.String("path", path))
	return nil
}
