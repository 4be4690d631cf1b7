package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mdejong/klusjes/internal/client"
	"github.com/mdejong/klusjes/internal/ui"
)

var photoCmd = &cobra.Command{
	Use:     "photo",
	GroupID: "chores",
	Short:   "Manage task photos",
	Long: `Attach and manage photos that document a chore.

Uploads go straight to the server; photos cannot be attached while it is
unreachable. The server shrinks and re-encodes every upload.`,
}

var photoListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List a task's photos, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api := client.NewAPI(cfg.ServerURL)
		photos, err := api.ListPhotos(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(photos) == 0 {
			fmt.Println("No photos for this task.")
			return nil
		}
		for _, photo := range photos {
			fmt.Printf("%s  %s%s  %s\n", photo.ID, cfg.ServerURL, photo.URL,
				ui.RenderDim(photo.CreatedAt.Format("2006-01-02 15:04")))
		}
		return nil
	},
}

var photoAddCmd = &cobra.Command{
	Use:   "add <task-id> <file>",
	Short: "Upload a photo for a task",
	Long: `Upload an image file as proof a chore was done.

Supported formats: JPEG, PNG, WebP. The server bounds the image to 800px
on its longest edge and compresses it.

Example usage:
  klusjes photo add task_b2c3 ./afwas.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, path := args[0], args[1]

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		api := client.NewAPI(cfg.ServerURL)
		photo, err := api.UploadPhoto(cmd.Context(), taskID, filepath.Base(path), contentType, f)
		if err != nil {
			return err
		}

		fmt.Printf("%s Uploaded %s (%s)\n", ui.RenderPass("✓"), photo.URL, photo.ID)
		return nil
	},
}

var photoRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api := client.NewAPI(cfg.ServerURL)
		if err := api.DeletePhoto(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Removed photo %s\n", ui.RenderPass("✓"), args[0])
		return nil
	},
}

func init() {
	photoCmd.AddCommand(photoListCmd, photoAddCmd, photoRmCmd)
	rootCmd.AddCommand(photoCmd)
}
