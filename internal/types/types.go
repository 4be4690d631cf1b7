// Package types defines the core domain model shared by the store, the HTTP
// API, and the sync client: rooms, tasks, photos, and the task status cycle.
package types

import (
	"fmt"
	"time"
)

// Room represents a room in the household. Tasks belong to exactly one room.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks if the Room has valid field values.
func (r *Room) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(r.Name) > 255 {
		return fmt.Errorf("name must be 255 characters or less (got %d)", len(r.Name))
	}
	return nil
}

// Task represents a single chore. Photos are owned by the task and ordered
// most recent first.
type Task struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Priority is a boolean flag, not an ordinal. Priority tasks sort
	// before non-priority tasks in listings.
	Priority bool   `json:"priority"`
	Status   Status `json:"status"`

	// DueDate carries no time component.
	DueDate *Date `json:"dueDate,omitempty"`

	// EstimatedDuration is in minutes and must be positive when set.
	EstimatedDuration *int `json:"estimatedDuration,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// CompletedAt is set exactly when the status transitions into
	// StatusCompleted and cleared when it leaves it.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Photos []Photo `json:"photos"`
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 255 {
		return fmt.Errorf("title must be 255 characters or less (got %d)", len(t.Title))
	}
	if t.RoomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("invalid status: %q", t.Status)
	}
	if t.EstimatedDuration != nil && *t.EstimatedDuration <= 0 {
		return fmt.Errorf("estimatedDuration must be positive (got %d)", *t.EstimatedDuration)
	}
	return nil
}

// Photo represents a photo attached to a task. The URL points at the stored
// binary; deleting the photo removes both the record and the binary.
type Photo struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// SetDefaults applies default values for optional task fields.
func (t *Task) SetDefaults() {
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Photos == nil {
		t.Photos = []Photo{}
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
}
