package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/types"
)

// ListPhotos returns the photos of a task, most recent first.
func (s *Store) ListPhotos(ctx context.Context, taskID string) ([]types.Photo, error) {
	if taskID == "" {
		return nil, apperr.Validationf("taskId is required")
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, task_id, url, created_at
		FROM task_photos
		WHERE task_id = ?
		ORDER BY created_at DESC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos for task %s: %w", taskID, err)
	}
	defer rows.Close()

	photos := []types.Photo{}
	for rows.Next() {
		var photo types.Photo
		var createdAt string
		if err := rows.Scan(&photo.ID, &photo.TaskID, &photo.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photo.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for photo %s: %w", photo.ID, err)
		}
		photos = append(photos, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

// CreatePhoto records a photo for a task. The task must resolve to a live
// record; the binary itself is stored by the caller before this is called.
func (s *Store) CreatePhoto(ctx context.Context, taskID, url string) (types.Photo, error) {
	if taskID == "" {
		return types.Photo{}, apperr.Validationf("taskId is required")
	}
	if url == "" {
		return types.Photo{}, apperr.Validationf("url is required")
	}

	if _, err := s.GetTask(ctx, taskID); err != nil {
		return types.Photo{}, err
	}

	photo := types.Photo{
		ID:        newID("photo"),
		TaskID:    taskID,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Photo{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_photos (id, task_id, url, created_at)
		VALUES (?, ?, ?, ?)
	`, photo.ID, photo.TaskID, photo.URL, photo.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return types.Photo{}, fmt.Errorf("failed to create photo: %w", err)
	}

	if err := touchWatermark(ctx, tx, CollectionTasks); err != nil {
		return types.Photo{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Photo{}, fmt.Errorf("failed to commit photo create: %w", err)
	}

	return photo, nil
}

// DeletePhoto removes a photo row and returns its URL so the caller can
// remove the backing binary.
func (s *Store) DeletePhoto(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", apperr.Validationf("id is required")
	}

	var url string
	err := s.conn.QueryRowContext(ctx,
		`SELECT url FROM task_photos WHERE id = ?`, id).Scan(&url)
	if err == sql.ErrNoRows {
		return "", apperr.NotFoundf("photo %s", id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up photo %s: %w", id, err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_photos WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("failed to delete photo %s: %w", id, err)
	}

	if err := touchWatermark(ctx, tx, CollectionTasks); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit photo delete: %w", err)
	}

	return url, nil
}

// Stats summarizes the dataset for the status command.
type Stats struct {
	Rooms    int
	Tasks    int
	ByStatus map[string]int
	Priority int
	Photos   int
}

// GetStats returns dataset counts.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[string]int)}

	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&stats.Rooms); err != nil {
		return Stats{}, fmt.Errorf("failed to count rooms: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_photos`).Scan(&stats.Photos); err != nil {
		return Stats{}, fmt.Errorf("failed to count photos: %w", err)
	}

	rows, err := s.conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("failed to scan task counts: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Tasks += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("error iterating task counts: %w", err)
	}

	err = s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE priority = 1 AND status != ?`,
		string(types.StatusCompleted)).Scan(&stats.Priority)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count priority tasks: %w", err)
	}

	return stats, nil
}
