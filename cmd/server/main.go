package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/youruser/cardvault/internal/collection"
	"github.com/youruser/cardvault/internal/config"
	"github.com/youruser/cardvault/internal/logging"
	"github.com/youruser/cardvault/internal/store"
)

var (
	// Global flags
	configPath string
	verbose    bool
	scopeFlag  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cardvault",
	Short: "cardvault - card collection service",
	Long: `cardvault keeps a card collection per owner scope: an ordered list of
cards with the number of copies held. Batches of cards are merged into the
collection, incrementing held cards and appending new ones.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if scopeFlag != "" {
			cfg.Collection.DefaultScope = scopeFlag
		}
		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&scopeFlag, "scope", "s", "", "collection scope (defaults to collection.default_scope)")

	rootCmd.AddCommand(serveCmd, importCmd, exportCmd)
}

// openStore builds the configured store backend.
func openStore() (store.Store, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "memory":
		logger.Warn("using in-memory store; collections are lost on exit")
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.OpenSQLite(store.SQLiteConfig{
			Path:            cfg.Store.Path,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.GetConnMaxLifetime(),
			BusyTimeout:     cfg.GetBusyTimeout(),
		}, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func newService(st store.Store) *collection.Service {
	return collection.NewService(st, logger, collection.Options{
		Timeout:           cfg.GetCollectionTimeout(),
		RefreshAfterWrite: cfg.Collection.RefreshAfterWrite,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
