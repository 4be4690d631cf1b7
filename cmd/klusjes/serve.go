package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mdejong/klusjes/internal/feed"
	"github.com/mdejong/klusjes/internal/httpapi"
	"github.com/mdejong/klusjes/internal/seed"
	"github.com/mdejong/klusjes/internal/store"
	"github.com/mdejong/klusjes/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Run the chore server",
	Long: `Run the HTTP server that owns the chore database.

The server exposes JSON endpoints for rooms, tasks and photos, stores
uploaded photos on disk, and pushes change notifications to connected
clients over a websocket feed.

Example usage:
  klusjes serve                  # Listen on the configured port (default 8008)
  klusjes serve --port 9000      # Listen on a custom port
  klusjes serve --seed           # Load starter data into an empty database

Clients connect with:
  klusjes room list --server http://host:8008`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Port
		}
		seedFlag, _ := cmd.Flags().GetBool("seed")

		logger := serverLogger()

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		if seedFlag {
			existing, err := st.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			if len(existing) == 0 {
				rooms, tasks, err := seed.Apply(cmd.Context(), st)
				if err != nil {
					return fmt.Errorf("failed to seed database: %w", err)
				}
				fmt.Printf("%s Seeded %d rooms and %d tasks\n", ui.RenderPass("✓"), rooms, tasks)
			}
		}

		server := httpapi.NewServer(st, &httpapi.Config{
			Port:       port,
			UploadsDir: cfg.UploadsDir,
			Feed: &feed.PublisherConfig{
				PollInterval:      cfg.FeedPollInterval,
				HeartbeatInterval: cfg.FeedHeartbeatInterval,
				Logger:            logger,
			},
			Logger: logger,
		})
		if err := server.Start(); err != nil {
			return err
		}

		fmt.Printf("%s Server listening on http://localhost:%d\n", ui.RenderPass("✓"), port)
		fmt.Printf("   Database: %s\n", cfg.DBPath)
		fmt.Printf("   Uploads:  %s\n", cfg.UploadsDir)
		fmt.Printf("   Feed:     ws://localhost:%d/api/events\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		<-cmd.Context().Done()
		fmt.Println("\nShutting down...")
		return server.Stop()
	},
}

// serverLogger writes to stderr, and additionally rotates into the
// configured log file when one is set.
func serverLogger() *log.Logger {
	if cfg.LogFile == "" {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	rotating := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(io.MultiWriter(os.Stderr, rotating), "", log.LstdFlags)
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
	serveCmd.Flags().Bool("seed", false, "load starter data when the database is empty")
	rootCmd.AddCommand(serveCmd)
}
