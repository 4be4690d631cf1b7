package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/mdejong/klusjes/internal/types"
	"github.com/mdejong/klusjes/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "chores",
	Short:   "Manage tasks",
	Long: `Manage chores.

Tasks cycle through todo, in-progress, waiting and completed. Priority
tasks sort to the top of every listing.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks, priority first and oldest first within each group.

Example usage:
  klusjes task list                  # Every task in the house
  klusjes task list --room <id>      # One room only
  klusjes task list --open           # Hide completed tasks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		roomID, _ := cmd.Flags().GetString("room")
		openOnly, _ := cmd.Flags().GetBool("open")

		tasks := coord.Cache().Tasks(roomID)
		if len(tasks) == 0 {
			fmt.Println("No tasks. Add one with: klusjes task add")
			return nil
		}

		roomNames := make(map[string]string)
		for _, room := range coord.Cache().Rooms() {
			roomNames[room.ID] = room.Name
		}

		shown := 0
		for _, task := range tasks {
			if openOnly && task.Status == types.StatusCompleted {
				continue
			}
			shown++

			title := task.Title
			if task.Priority {
				title = ui.RenderWarn("! ") + ui.RenderBold(title)
			}
			fmt.Printf("%s %s  %s\n", ui.StatusGlyph(task.Status), title, ui.RenderDim(roomNames[task.RoomID]))

			details := fmt.Sprintf("   %s  %s", ui.RenderDim(task.ID), ui.RenderStatus(task.Status))
			if task.DueDate != nil {
				details += "  due " + task.DueDate.String()
			}
			if task.EstimatedDuration != nil {
				details += fmt.Sprintf("  ~%dm", *task.EstimatedDuration)
			}
			if len(task.Photos) > 0 {
				details += fmt.Sprintf("  📷 %d", len(task.Photos))
			}
			fmt.Println(details)
		}
		if shown == 0 {
			fmt.Println("Nothing open. Well done!")
		}
		return nil
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add a task",
	Long: `Add a chore to a room.

Without arguments an interactive form asks for the details. The --due
flag accepts natural language like "tomorrow" or "next saturday".

Example usage:
  klusjes task add "Afwas doen" --room <id> --priority
  klusjes task add "Ramen lappen" --room <id> --due "next saturday" --minutes 45
  klusjes task add`,
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		var title string
		if len(args) > 0 {
			title = args[0]
		}
		roomID, _ := cmd.Flags().GetString("room")
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetBool("priority")
		dueRaw, _ := cmd.Flags().GetString("due")
		minutes, _ := cmd.Flags().GetInt("minutes")

		if title == "" || roomID == "" {
			rooms := coord.Cache().Rooms()
			if len(rooms) == 0 {
				return fmt.Errorf("no rooms yet, add one first: klusjes room add")
			}
			options := make([]huh.Option[string], 0, len(rooms))
			for _, room := range rooms {
				options = append(options, huh.NewOption(room.Name, room.ID))
			}
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Task").Value(&title),
				huh.NewSelect[string]().Title("Room").Options(options...).Value(&roomID),
				huh.NewInput().Title("Due (optional, e.g. tomorrow)").Value(&dueRaw),
				huh.NewConfirm().Title("Priority?").Value(&priority),
			))
			if err := form.Run(); err != nil {
				return err
			}
		}

		task := types.Task{
			Title:       title,
			RoomID:      roomID,
			Description: description,
			Priority:    priority,
		}
		if dueRaw != "" {
			due, err := parseDue(dueRaw)
			if err != nil {
				return err
			}
			task.DueDate = &due
		}
		if minutes > 0 {
			task.EstimatedDuration = &minutes
		}

		created, err := coord.CreateTask(cmd.Context(), task)
		if err != nil {
			return err
		}

		fmt.Printf("%s Added task %s (%s)\n", ui.RenderPass("✓"), created.Title, created.ID)
		if created.DueDate != nil {
			fmt.Printf("   Due %s\n", created.DueDate.String())
		}
		if !coord.Online() {
			fmt.Printf("   %s\n", ui.RenderWarn("Server unreachable, change queued for sync"))
		}
		return nil
	},
}

var taskAdvanceCmd = &cobra.Command{
	Use:     "advance <id>",
	Aliases: []string{"next", "bump"},
	Short:   "Move a task to its next status",
	Long: `Move a task one step along the status cycle:
todo → in-progress → waiting → completed → todo

Completing a task stamps the completion time; cycling past completed
clears it again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		task, err := coord.AdvanceTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s %s is now %s\n", ui.StatusGlyph(task.Status), task.Title, ui.RenderStatus(task.Status))
		if task.Status == types.StatusCompleted && task.CompletedAt != nil {
			fmt.Printf("   Completed at %s\n", task.CompletedAt.Format("15:04"))
		}
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Long: `Mark a task completed in one step, regardless of its current status.

Use "klusjes task advance" to walk the cycle one status at a time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		task, ok := coord.Cache().Task(args[0])
		if !ok {
			return fmt.Errorf("task %s not found", args[0])
		}
		if task.Status == types.StatusCompleted {
			fmt.Printf("%s %s was already completed\n", ui.StatusGlyph(task.Status), task.Title)
			return nil
		}

		task.Status = types.StatusCompleted
		updated, err := coord.UpdateTask(cmd.Context(), task)
		if err != nil {
			return err
		}
		fmt.Printf("%s Completed %s\n", ui.RenderPass("✓"), updated.Title)
		return nil
	},
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		task, ok := coord.Cache().Task(args[0])
		if !ok {
			return fmt.Errorf("task %s not found", args[0])
		}

		if cmd.Flags().Changed("title") {
			task.Title, _ = cmd.Flags().GetString("title")
		}
		if cmd.Flags().Changed("description") {
			task.Description, _ = cmd.Flags().GetString("description")
		}
		if cmd.Flags().Changed("room") {
			task.RoomID, _ = cmd.Flags().GetString("room")
		}
		if cmd.Flags().Changed("priority") {
			task.Priority, _ = cmd.Flags().GetBool("priority")
		}
		if cmd.Flags().Changed("due") {
			raw, _ := cmd.Flags().GetString("due")
			if raw == "" {
				task.DueDate = nil
			} else {
				due, err := parseDue(raw)
				if err != nil {
					return err
				}
				task.DueDate = &due
			}
		}
		if cmd.Flags().Changed("minutes") {
			minutes, _ := cmd.Flags().GetInt("minutes")
			if minutes > 0 {
				task.EstimatedDuration = &minutes
			} else {
				task.EstimatedDuration = nil
			}
		}

		updated, err := coord.UpdateTask(cmd.Context(), task)
		if err != nil {
			return err
		}
		fmt.Printf("%s Updated task %s\n", ui.RenderPass("✓"), updated.Title)
		return nil
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a task and its photos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord, err := newCoordinator(cmd, false)
		if err != nil {
			return err
		}
		defer coord.Stop()

		if err := coord.DeleteTask(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Removed task %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

// parseDue turns natural language like "tomorrow" or an ISO date into a
// due date
func parseDue(raw string) (types.Date, error) {
	if d, err := types.ParseDate(raw); err == nil {
		return d, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(raw, time.Now())
	if err != nil {
		return types.Date{}, fmt.Errorf("failed to parse due date %q: %w", raw, err)
	}
	if result == nil {
		return types.Date{}, fmt.Errorf("could not understand due date %q", raw)
	}
	return types.NewDate(result.Time), nil
}

func init() {
	taskListCmd.Flags().String("room", "", "only tasks in this room")
	taskListCmd.Flags().Bool("open", false, "hide completed tasks")

	taskAddCmd.Flags().String("room", "", "room the task belongs to")
	taskAddCmd.Flags().String("description", "", "task description")
	taskAddCmd.Flags().Bool("priority", false, "mark as priority")
	taskAddCmd.Flags().String("due", "", `due date ("tomorrow", "next saturday", "2026-09-01")`)
	taskAddCmd.Flags().Int("minutes", 0, "estimated duration in minutes")

	taskEditCmd.Flags().String("title", "", "new title")
	taskEditCmd.Flags().String("description", "", "new description")
	taskEditCmd.Flags().String("room", "", "move to another room")
	taskEditCmd.Flags().Bool("priority", false, "set or clear priority")
	taskEditCmd.Flags().String("due", "", "new due date (empty clears it)")
	taskEditCmd.Flags().Int("minutes", 0, "new estimate (0 clears it)")

	taskCmd.AddCommand(taskListCmd, taskAddCmd, taskAdvanceCmd, taskDoneCmd, taskEditCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
