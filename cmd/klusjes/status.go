package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdejong/klusjes/internal/store"
	"github.com/mdejong/klusjes/internal/types"
	"github.com/mdejong/klusjes/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show connection and chore status",
	Long: `Show whether the server is reachable, what the local cache holds, and
a per-status breakdown of the household's tasks.

Works offline: without a server the numbers come from the local cache.
With --local the numbers come straight from the server database on this
machine instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		local, _ := cmd.Flags().GetBool("local")
		if local {
			return localStatus(cmd)
		}
		coord, err := newCoordinator(cmd, verbose)
		if err != nil {
			return err
		}
		defer coord.Stop()

		if coord.Online() {
			fmt.Printf("%s Server: %s\n", ui.RenderPass("●"), cfg.ServerURL)
		} else {
			fmt.Printf("%s Server: %s (unreachable, showing cached data)\n", ui.RenderErr("●"), cfg.ServerURL)
		}

		cache := coord.Cache()
		rooms := cache.Rooms()
		tasks := cache.Tasks("")

		byStatus := make(map[types.Status]int)
		priority := 0
		photos := 0
		for _, task := range tasks {
			byStatus[task.Status]++
			if task.Priority && task.Status != types.StatusCompleted {
				priority++
			}
			photos += len(task.Photos)
		}

		fmt.Printf("\n%s\n", ui.RenderBold("Household"))
		fmt.Printf("   Rooms:  %d\n", len(rooms))
		fmt.Printf("   Tasks:  %d\n", len(tasks))
		fmt.Printf("   Photos: %d\n", photos)

		fmt.Printf("\n%s\n", ui.RenderBold("Tasks by status"))
		for _, status := range types.AllStatuses {
			fmt.Printf("   %s %-12s %d\n", ui.StatusGlyph(status), status, byStatus[status])
		}
		if priority > 0 {
			fmt.Printf("\n   %s %d open priority task(s)\n", ui.RenderWarn("!"), priority)
		}

		if ops := cache.Ops(); len(ops) > 0 {
			fmt.Printf("\n%s %d change(s) queued for sync\n", ui.RenderWarn("⇅"), len(ops))
			if verbose {
				for _, op := range ops {
					fmt.Printf("   - %s %s\n", op.Kind, op.TargetID)
				}
			}
		}
		return nil
	},
}

// localStatus reads the server database directly: record counts plus the
// per-collection watermarks driving the change feed.
func localStatus(cmd *cobra.Command) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", ui.RenderBold("Database"), cfg.DBPath)
	fmt.Printf("   Rooms:  %d\n", stats.Rooms)
	fmt.Printf("   Tasks:  %d\n", stats.Tasks)
	fmt.Printf("   Photos: %d\n", stats.Photos)

	fmt.Printf("\n%s\n", ui.RenderBold("Tasks by status"))
	for _, status := range types.AllStatuses {
		fmt.Printf("   %s %-12s %d\n", ui.StatusGlyph(status), status, stats.ByStatus[string(status)])
	}
	if stats.Priority > 0 {
		fmt.Printf("\n   %s %d open priority task(s)\n", ui.RenderWarn("!"), stats.Priority)
	}

	fmt.Printf("\n%s\n", ui.RenderBold("Watermarks"))
	for _, collection := range []string{store.CollectionRooms, store.CollectionTasks} {
		mark, err := st.Watermark(cmd.Context(), collection)
		if err != nil {
			return err
		}
		if mark.IsZero() {
			fmt.Printf("   %-6s never modified\n", collection)
		} else {
			fmt.Printf("   %-6s %s\n", collection, mark.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func init() {
	statusCmd.Flags().Bool("verbose", false, "show sync details")
	statusCmd.Flags().Bool("local", false, "read the server database directly")
	rootCmd.AddCommand(statusCmd)
}
