package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mdejong/klusjes/internal/types"
	"github.com/mdejong/klusjes/internal/ui"
)

var roomCmd = &cobra.Command{
	Use:     "room",
	GroupID: "chores",
	Short:   "Manage rooms",
	Long: `Manage the rooms of the household.

Every task lives in a room. Removing a room removes its tasks and their
photos with it.`,
}

var roomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		rooms := coord.Cache().Rooms()
		if len(rooms) == 0 {
			fmt.Println("No rooms yet. Add one with: klusjes room add")
			return nil
		}

		for _, room := range rooms {
			open := 0
			for _, task := range coord.Cache().Tasks(room.ID) {
				if task.Status != types.StatusCompleted {
					open++
				}
			}
			line := fmt.Sprintf("%s%s", ui.RoomSwatch(room.Color), ui.RenderBold(room.Name))
			if room.Description != "" {
				line += "  " + ui.RenderDim(room.Description)
			}
			fmt.Printf("%s\n   %s  %d open task(s)\n", line, ui.RenderDim(room.ID), open)
		}
		return nil
	},
}

var roomAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a room",
	Long: `Add a room to the household.

Without arguments an interactive form asks for the details.

Example usage:
  klusjes room add Keuken --color "#f59e0b"
  klusjes room add`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var name, description, color string
		if len(args) > 0 {
			name = args[0]
		}
		description, _ = cmd.Flags().GetString("description")
		color, _ = cmd.Flags().GetString("color")

		if name == "" {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Room name").Value(&name),
				huh.NewInput().Title("Description (optional)").Value(&description),
				huh.NewInput().Title("Color (hex, optional)").Value(&color),
			))
			if err := form.Run(); err != nil {
				return err
			}
		}

		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		room, err := coord.CreateRoom(cmd.Context(), name, description, color)
		if err != nil {
			return err
		}

		fmt.Printf("%s Added room %s%s (%s)\n", ui.RenderPass("✓"), ui.RoomSwatch(room.Color), room.Name, room.ID)
		if !coord.Online() {
			fmt.Printf("   %s\n", ui.RenderWarn("Server unreachable, change queued for sync"))
		}
		return nil
	},
}

var roomEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		room, ok := coord.Cache().Room(args[0])
		if !ok {
			return fmt.Errorf("room %s not found", args[0])
		}

		if cmd.Flags().Changed("name") {
			room.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("description") {
			room.Description, _ = cmd.Flags().GetString("description")
		}
		if cmd.Flags().Changed("color") {
			room.Color, _ = cmd.Flags().GetString("color")
		}

		updated, err := coord.UpdateRoom(cmd.Context(), room)
		if err != nil {
			return err
		}
		fmt.Printf("%s Updated room %s\n", ui.RenderPass("✓"), updated.Name)
		return nil
	},
}

var roomRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a room and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		room, ok := coord.Cache().Room(args[0])
		if !ok {
			return fmt.Errorf("room %s not found", args[0])
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			confirmed := false
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Remove %s and all its tasks?", room.Name)).
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := coord.DeleteRoom(cmd.Context(), room.ID); err != nil {
			return err
		}
		fmt.Printf("%s Removed room %s\n", ui.RenderPass("✓"), room.Name)
		return nil
	},
}

func init() {
	roomAddCmd.Flags().String("description", "", "room description")
	roomAddCmd.Flags().String("color", "", "display color (hex)")

	roomEditCmd.Flags().String("name", "", "new name")
	roomEditCmd.Flags().String("description", "", "new description")
	roomEditCmd.Flags().String("color", "", "new display color (hex)")

	roomRmCmd.Flags().Bool("force", false, "skip confirmation")

	roomCmd.AddCommand(roomListCmd, roomAddCmd, roomEditCmd, roomRmCmd)
	rootCmd.AddCommand(roomCmd)
}
