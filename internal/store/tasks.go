package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/types"
)

// TaskParams carries the editable fields of a task. Update has full-replace
// semantics, so callers supply the complete desired state for every field.
type TaskParams struct {
	Title             string
	RoomID            string
	Description       string
	Priority          bool
	Status            types.Status
	DueDate           *types.Date
	EstimatedDuration *int
}

// ListTasks returns tasks ordered priority-desc then creation-asc, so
// priority tasks float up and ties break by age. Each task includes its
// photos ordered most recent first. An empty roomID returns all tasks.
func (s *Store) ListTasks(ctx context.Context, roomID string) ([]types.Task, error) {
	query := `
		SELECT id, room_id, title, description, priority, status,
		       due_date, estimated_minutes, created_at, completed_at
		FROM tasks
	`
	var args []any
	if roomID != "" {
		query += " WHERE room_id = ?"
		args = append(args, roomID)
	}
	query += " ORDER BY priority DESC, created_at ASC, id ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}

	if err := s.attachPhotos(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask retrieves a single task by id, photos included.
func (s *Store) GetTask(ctx context.Context, id string) (types.Task, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, room_id, title, description, priority, status,
		       due_date, estimated_minutes, created_at, completed_at
		FROM tasks
		WHERE id = ?
	`, id)
	if err != nil {
		return types.Task{}, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return types.Task{}, err
	}
	if len(tasks) == 0 {
		return types.Task{}, apperr.NotFoundf("task %s", id)
	}

	if err := s.attachPhotos(ctx, tasks); err != nil {
		return types.Task{}, err
	}
	return tasks[0], nil
}

// CreateTask inserts a new task and returns the canonical record. The room
// must resolve to a live room; new tasks carry no photos.
func (s *Store) CreateTask(ctx context.Context, p TaskParams) (types.Task, error) {
	if p.Status == "" {
		p.Status = types.StatusTodo
	}

	task := types.Task{
		ID:                newID("task"),
		RoomID:            p.RoomID,
		Title:             p.Title,
		Description:       p.Description,
		Priority:          p.Priority,
		Status:            p.Status,
		DueDate:           p.DueDate,
		EstimatedDuration: p.EstimatedDuration,
		CreatedAt:         time.Now().UTC(),
		Photos:            []types.Photo{},
	}
	if err := task.Validate(); err != nil {
		return types.Task{}, apperr.Validationf("%v", err)
	}
	if p.Status == types.StatusCompleted {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	if _, err := s.GetRoom(ctx, p.RoomID); err != nil {
		return types.Task{}, err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Task{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, room_id, title, description, priority, status,
		                   due_date, estimated_minutes, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		task.RoomID,
		task.Title,
		task.Description,
		boolToInt(task.Priority),
		string(task.Status),
		dateToNullString(task.DueDate),
		intToNullInt(task.EstimatedDuration),
		task.CreatedAt.Format(time.RFC3339Nano),
		timeToNullString(task.CompletedAt),
	)
	if err != nil {
		return types.Task{}, fmt.Errorf("failed to create task: %w", err)
	}

	if err := touchWatermark(ctx, tx, CollectionTasks); err != nil {
		return types.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Task{}, fmt.Errorf("failed to commit task create: %w", err)
	}

	return task, nil
}

// UpdateTask replaces the editable fields of a task and returns the
// canonical post-mutation record. A RoomID different from the current one
// moves the task; the target room must resolve. An empty RoomID keeps the
// task where it is.
//
// The completedAt rule is enforced here, authoritatively: transitioning
// into completed stamps completed_at with the server clock; any status
// other than completed clears it; staying completed keeps the original
// stamp. Clients never compute this field themselves.
func (s *Store) UpdateTask(ctx context.Context, id string, p TaskParams) (types.Task, error) {
	if id == "" {
		return types.Task{}, apperr.Validationf("id is required")
	}
	if p.Status == "" {
		p.Status = types.StatusTodo
	}
	if p.Title == "" {
		return types.Task{}, apperr.Validationf("title is required")
	}
	if !p.Status.Valid() {
		return types.Task{}, apperr.Validationf("invalid status: %q", p.Status)
	}
	if p.EstimatedDuration != nil && *p.EstimatedDuration <= 0 {
		return types.Task{}, apperr.Validationf("estimatedDuration must be positive")
	}

	prior, err := s.GetTask(ctx, id)
	if err != nil {
		return types.Task{}, err
	}

	roomID := p.RoomID
	if roomID == "" {
		roomID = prior.RoomID
	} else if roomID != prior.RoomID {
		if _, err := s.GetRoom(ctx, roomID); err != nil {
			return types.Task{}, err
		}
	}

	var completedAt *time.Time
	switch {
	case p.Status == types.StatusCompleted && prior.Status != types.StatusCompleted:
		now := time.Now().UTC()
		completedAt = &now
	case p.Status == types.StatusCompleted:
		completedAt = prior.CompletedAt
	default:
		completedAt = nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Task{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET
			room_id = ?,
			title = ?,
			description = ?,
			priority = ?,
			status = ?,
			due_date = ?,
			estimated_minutes = ?,
			completed_at = ?
		WHERE id = ?
	`,
		roomID,
		p.Title,
		p.Description,
		boolToInt(p.Priority),
		string(p.Status),
		dateToNullString(p.DueDate),
		intToNullInt(p.EstimatedDuration),
		timeToNullString(completedAt),
		id,
	)
	if err != nil {
		return types.Task{}, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.Task{}, fmt.Errorf("failed to check task update: %w", err)
	}
	if affected == 0 {
		return types.Task{}, apperr.NotFoundf("task %s", id)
	}

	if err := touchWatermark(ctx, tx, CollectionTasks); err != nil {
		return types.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Task{}, fmt.Errorf("failed to commit task update: %w", err)
	}

	return s.GetTask(ctx, id)
}

// AdvanceTask moves a task one step forward in the status cycle, wrapping
// completed back to todo. It goes through UpdateTask so the completedAt
// rule lives in exactly one place.
func (s *Store) AdvanceTask(ctx context.Context, id string) (types.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return types.Task{}, err
	}

	return s.UpdateTask(ctx, id, TaskParams{
		Title:             task.Title,
		RoomID:            task.RoomID,
		Description:       task.Description,
		Priority:          task.Priority,
		Status:            task.Status.Advance(),
		DueDate:           task.DueDate,
		EstimatedDuration: task.EstimatedDuration,
	})
}

// DeleteTask removes a task and cascades to its photos. Returns the URLs of
// deleted photos so the caller can remove the backing binaries.
func (s *Store) DeleteTask(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return nil, apperr.Validationf("id is required")
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	urls, err := collectURLs(ctx, tx, `SELECT url FROM task_photos WHERE task_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to collect photo urls for task %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check task delete: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFoundf("task %s", id)
	}

	if err := touchWatermark(ctx, tx, CollectionTasks); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit task delete: %w", err)
	}

	return urls, nil
}

// attachPhotos resolves photos for the given tasks in a single query.
func (s *Store) attachPhotos(ctx context.Context, tasks []types.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	placeholders := make([]string, len(tasks))
	args := make([]any, len(tasks))
	index := make(map[string]int, len(tasks))
	for i := range tasks {
		placeholders[i] = "?"
		args[i] = tasks[i].ID
		index[tasks[i].ID] = i
		tasks[i].Photos = []types.Photo{}
	}

	query := fmt.Sprintf(`
		SELECT id, task_id, url, created_at
		FROM task_photos
		WHERE task_id IN (%s)
		ORDER BY created_at DESC, id ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var photo types.Photo
		var createdAt string
		if err := rows.Scan(&photo.ID, &photo.TaskID, &photo.URL, &createdAt); err != nil {
			return fmt.Errorf("failed to scan photo: %w", err)
		}
		photo.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return fmt.Errorf("failed to parse created_at for photo %s: %w", photo.ID, err)
		}
		if i, ok := index[photo.TaskID]; ok {
			tasks[i].Photos = append(tasks[i].Photos, photo)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating photos: %w", err)
	}
	return nil
}

// scanTasks reads task rows without photos.
func scanTasks(rows *sql.Rows) ([]types.Task, error) {
	tasks := []types.Task{}
	for rows.Next() {
		var task types.Task
		var priority int
		var status string
		var dueDate sql.NullString
		var estimated sql.NullInt64
		var createdAt string
		var completedAt sql.NullString

		err := rows.Scan(
			&task.ID,
			&task.RoomID,
			&task.Title,
			&task.Description,
			&priority,
			&status,
			&dueDate,
			&estimated,
			&createdAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		task.Priority = priority != 0
		task.Status = types.Status(status)
		if dueDate.Valid {
			d, err := types.ParseDate(dueDate.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse due_date for task %s: %w", task.ID, err)
			}
			task.DueDate = &d
		}
		if estimated.Valid {
			minutes := int(estimated.Int64)
			task.EstimatedDuration = &minutes
		}
		task.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for task %s: %w", task.ID, err)
		}
		task.CompletedAt = nullStringToTime(completedAt)

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func dateToNullString(d *types.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func intToNullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
