package main

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mdejong/klusjes/internal/client"
	"github.com/mdejong/klusjes/internal/config"
	"github.com/mdejong/klusjes/internal/feed"
	"github.com/mdejong/klusjes/internal/seed"
	"github.com/mdejong/klusjes/internal/types"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "klusjes",
	Short: "Household chore tracker",
	Long: `Klusjes tracks household chores per room: what needs doing, who is on
it, and photo proof of the result.

A single server owns the data; any number of clients stay in sync through
a live change feed with polling as fallback. Clients keep working offline
and reconcile once the server is reachable again.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.klusjes/klusjes.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "server", Title: "Server Commands:"},
		&cobra.Group{ID: "chores", Title: "Chore Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
	)
}

// commandLogger discards client-side sync chatter unless verbose is set
func commandLogger(verbose bool) *log.Logger {
	if verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// seedData adapts the embedded starter dataset to the coordinator's
// fallback hook
func seedData() ([]types.Room, []types.Task) {
	rooms, err := seed.Rooms()
	if err != nil {
		return nil, nil
	}
	tasks, err := seed.Tasks()
	if err != nil {
		return rooms, nil
	}
	return rooms, tasks
}

// newCoordinator builds and starts a coordinator from the loaded config
func newCoordinator(cmd *cobra.Command, verbose bool) (*client.Coordinator, error) {
	logger := commandLogger(verbose)
	api := client.NewAPI(cfg.ServerURL)
	cache := client.NewCache(cfg.CacheDir, logger)

	coord := client.NewCoordinator(api, cache, &client.CoordinatorConfig{
		RefreshInterval: cfg.RefreshInterval,
		FeedConfig: &feed.ClientConfig{
			Logger: logger,
		},
		Seed:   seedData,
		Logger: logger,
	})
	if err := coord.Start(cmd.Context()); err != nil {
		return nil, err
	}
	return coord, nil
}
