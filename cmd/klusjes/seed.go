package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdejong/klusjes/internal/seed"
	"github.com/mdejong/klusjes/internal/store"
	"github.com/mdejong/klusjes/internal/ui"
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	GroupID: "server",
	Short:   "Load starter data into the database",
	Long: `Load the embedded starter dataset into the chore database.

The dataset contains the usual rooms of a house plus a few example tasks.
Seeding an already populated database adds the rooms again, so this is
meant for fresh installs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		rooms, tasks, err := seed.Apply(cmd.Context(), st)
		if err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}

		fmt.Printf("%s Seeded %d rooms and %d tasks into %s\n", ui.RenderPass("✓"), rooms, tasks, cfg.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
