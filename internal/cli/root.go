// Package cli wires the cogscreen commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"cogscreen-go/internal/config"
	"cogscreen-go/internal/database"
	logging "cogscreen-go/internal/logging"
	"cogscreen-go/internal/results"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var projectRoot string

	root := &cobra.Command{
		Use:           "cogscreen",
		Short:         "Cognitive screening server and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root holding config/")

	root.AddCommand(newServeCmd(&projectRoot))
	root.AddCommand(newRecordCmd(&projectRoot))
	root.AddCommand(newLayoutCmd(&projectRoot))
	root.AddCommand(newPredictCmd(&projectRoot))
	root.AddCommand(newUserCmd(&projectRoot))
	return root
}

// loadConfig reads configuration with a console logger.
func loadConfig(projectRoot string) (*zap.Logger, error) {
	log := logging.NewConsole()
	if err := config.Init(projectRoot, log); err != nil {
		return nil, err
	}
	return log, nil
}

// openStore opens the configured results store.
func openStore(ctx context.Context, log *zap.Logger) (results.Store, error) {
	switch backend := strings.ToLower(config.Conf.Storage.Backend); backend {
	case "redis":
		rc := config.Conf.Redis
		store := results.NewRedisStore(rc.Addr, rc.Password, rc.DB, rc.TTL)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", rc.Addr, err)
		}
		log.Info("Using redis results store", zap.String("addr", rc.Addr))
		return store, nil
	case "bolt", "":
		store, err := results.OpenBolt(config.Conf.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		log.Info("Using bolt results store", zap.String("path", config.Conf.Storage.BoltPath))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// openDatabase connects when the database is enabled. The returned func
// closes the pool.
func openDatabase(log *zap.Logger, required bool) (func(), error) {
	if !config.Conf.Database.Enabled {
		if required {
			return nil, fmt.Errorf("database is disabled in configuration")
		}
		log.Info("Database disabled; results are kept in the results store only")
		return func() {}, nil
	}
	if err := database.Init(log, config.Conf.Database); err != nil {
		return nil, err
	}
	return func() {
		if err := database.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}, nil
}
