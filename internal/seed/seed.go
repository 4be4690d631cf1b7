// Package seed provides the built-in default dataset.
//
// The dataset serves two purposes: the sync client falls back to it on first
// run when both the network and the persisted cache are empty (so the UI is
// never blank), and the seed command loads it into a fresh store.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mdejong/klusjes/internal/store"
	"github.com/mdejong/klusjes/internal/types"
)

//go:embed data.yaml
var rawData []byte

// dataset mirrors the YAML layout.
type dataset struct {
	Rooms []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Color       string `yaml:"color"`
	} `yaml:"rooms"`
	Tasks []struct {
		ID                string `yaml:"id"`
		RoomID            string `yaml:"roomId"`
		Title             string `yaml:"title"`
		Description       string `yaml:"description"`
		Priority          bool   `yaml:"priority"`
		Status            string `yaml:"status"`
		EstimatedDuration int    `yaml:"estimatedDuration"`
	} `yaml:"tasks"`
}

var (
	parseOnce sync.Once
	parsed    dataset
	parseErr  error
)

func load() (dataset, error) {
	parseOnce.Do(func() {
		parseErr = yaml.Unmarshal(rawData, &parsed)
	})
	return parsed, parseErr
}

// Rooms returns the default rooms. Timestamps are stamped at call time so
// creation ordering is stable within the set.
func Rooms() ([]types.Room, error) {
	data, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	base := time.Now().UTC()
	rooms := make([]types.Room, 0, len(data.Rooms))
	for i, r := range data.Rooms {
		rooms = append(rooms, types.Room{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Color:       r.Color,
			CreatedAt:   base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return rooms, nil
}

// Tasks returns the default tasks.
func Tasks() ([]types.Task, error) {
	data, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	base := time.Now().UTC()
	tasks := make([]types.Task, 0, len(data.Tasks))
	for i, raw := range data.Tasks {
		task := types.Task{
			ID:          raw.ID,
			RoomID:      raw.RoomID,
			Title:       raw.Title,
			Description: raw.Description,
			Priority:    raw.Priority,
			Status:      types.Status(raw.Status),
			CreatedAt:   base.Add(time.Duration(i) * time.Millisecond),
			Photos:      []types.Photo{},
		}
		if raw.EstimatedDuration > 0 {
			minutes := raw.EstimatedDuration
			task.EstimatedDuration = &minutes
		}
		if task.Status == types.StatusCompleted {
			stamp := task.CreatedAt
			task.CompletedAt = &stamp
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Apply loads the default dataset into a store. Existing records with
// conflicting names are not deduplicated; callers seed fresh databases.
func Apply(ctx context.Context, s *store.Store) (roomCount, taskCount int, err error) {
	rooms, err := Rooms()
	if err != nil {
		return 0, 0, err
	}
	tasks, err := Tasks()
	if err != nil {
		return 0, 0, err
	}

	idMap := make(map[string]string, len(rooms))
	for _, room := range rooms {
		created, err := s.CreateRoom(ctx, room.Name, room.Description, room.Color)
		if err != nil {
			return roomCount, taskCount, fmt.Errorf("failed to seed room %s: %w", room.Name, err)
		}
		idMap[room.ID] = created.ID
		roomCount++
	}

	for _, task := range tasks {
		roomID, ok := idMap[task.RoomID]
		if !ok {
			return roomCount, taskCount, fmt.Errorf("seed task %s references unknown room %s", task.Title, task.RoomID)
		}
		params := store.TaskParams{
			Title:             task.Title,
			RoomID:            roomID,
			Description:       task.Description,
			Priority:          task.Priority,
			Status:            task.Status,
			EstimatedDuration: task.EstimatedDuration,
		}
		if _, err := s.CreateTask(ctx, params); err != nil {
			return roomCount, taskCount, fmt.Errorf("failed to seed task %s: %w", task.Title, err)
		}
		taskCount++
	}

	return roomCount, taskCount, nil
}
