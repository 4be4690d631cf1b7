package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdejong/klusjes/internal/client"
	"github.com/mdejong/klusjes/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run the sync daemon in the foreground",
	Long: `Keep the local cache continuously synchronized with the server.

The daemon subscribes to the server's change feed, refreshes periodically
as a safety net, and replays any queued offline changes the moment the
server becomes reachable. It also watches the cache directory, so changes
queued by other commands on this machine sync without waiting for the
next interval.

Example usage:
  klusjes sync
  klusjes sync --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")

		coord, err := newCoordinator(cmd, verbose)
		if err != nil {
			return err
		}
		defer coord.Stop()

		watcher, err := client.NewCacheWatcher(coord.Cache().Dir())
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()

		if coord.Online() {
			fmt.Printf("%s Connected to %s\n", ui.RenderPass("✓"), cfg.ServerURL)
		} else {
			fmt.Printf("%s %s unreachable, running offline\n", ui.RenderWarn("!"), cfg.ServerURL)
		}
		fmt.Printf("   Cache: %s\n", coord.Cache().Dir())
		fmt.Println("\nPress Ctrl+C to stop...")

		changes := coord.Cache().Subscribe()
		for {
			select {
			case <-cmd.Context().Done():
				fmt.Println("\nStopping sync daemon...")
				return nil

			case <-changes:
				if verbose {
					rooms := len(coord.Cache().Rooms())
					tasks := len(coord.Cache().Tasks(""))
					fmt.Printf("%s cache updated: %d rooms, %d tasks\n", ui.RenderAccent("↻"), rooms, tasks)
				}

			case name, ok := <-watcher.Changes():
				if !ok {
					return nil
				}
				// Another process rewrote a cache file; reload so its
				// queued ops are picked up for replay.
				if err := coord.Cache().Load(); err != nil && verbose {
					fmt.Printf("%s failed to reload cache after %s changed: %v\n", ui.RenderErr("✗"), name, err)
				}

			case err, ok := <-watcher.Errors():
				if !ok {
					return nil
				}
				fmt.Printf("%s cache watcher error: %v\n", ui.RenderErr("✗"), err)
			}
		}
	},
}

func init() {
	syncCmd.Flags().Bool("verbose", false, "log every sync event")
	rootCmd.AddCommand(syncCmd)
}
