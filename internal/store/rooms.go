package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/types"
)

// defaultRoomColor is used when a caller omits the display color.
const defaultRoomColor = "#6366f1"

// ListRooms returns all rooms in ascending creation order.
func (s *Store) ListRooms(ctx context.Context) ([]types.Room, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, description, color, created_at
		FROM rooms
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	return scanRooms(rows)
}

// GetRoom retrieves a single room by id.
func (s *Store) GetRoom(ctx context.Context, id string) (types.Room, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, description, color, created_at
		FROM rooms
		WHERE id = ?
	`, id)

	room, err := scanRoom(row)
	if err == sql.ErrNoRows {
		return types.Room{}, apperr.NotFoundf("room %s", id)
	}
	if err != nil {
		return types.Room{}, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return room, nil
}

// CreateRoom inserts a new room and returns the canonical record with the
// server-generated id and creation timestamp.
func (s *Store) CreateRoom(ctx context.Context, name, description, color string) (types.Room, error) {
	if name == "" {
		return types.Room{}, apperr.Validationf("name is required")
	}
	if color == "" {
		color = defaultRoomColor
	}

	room := types.Room{
		ID:          newID("room"),
		Name:        name,
		Description: description,
		Color:       color,
		CreatedAt:   time.Now().UTC(),
	}
	if err := room.Validate(); err != nil {
		return types.Room{}, apperr.Validationf("%v", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Room{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (id, name, description, color, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, room.ID, room.Name, room.Description, room.Color, room.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return types.Room{}, fmt.Errorf("failed to create room: %w", err)
	}

	if err := touchWatermark(ctx, tx, CollectionRooms); err != nil {
		return types.Room{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Room{}, fmt.Errorf("failed to commit room create: %w", err)
	}

	return room, nil
}

// UpdateRoom replaces the editable fields of a room (name, description,
// color). Full-replace semantics: callers must supply the complete desired
// state for every field.
func (s *Store) UpdateRoom(ctx context.Context, id, name, description, color string) (types.Room, error) {
	if id == "" {
		return types.Room{}, apperr.Validationf("id is required")
	}
	if name == "" {
		return types.Room{}, apperr.Validationf("name is required")
	}
	if color == "" {
		color = defaultRoomColor
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return types.Room{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rooms SET name = ?, description = ?, color = ? WHERE id = ?
	`, name, description, color, id)
	if err != nil {
		return types.Room{}, fmt.Errorf("failed to update room %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.Room{}, fmt.Errorf("failed to check room update: %w", err)
	}
	if affected == 0 {
		return types.Room{}, apperr.NotFoundf("room %s", id)
	}

	if err := touchWatermark(ctx, tx, CollectionRooms); err != nil {
		return types.Room{}, err
	}
	if err := tx.Commit(); err != nil {
		return types.Room{}, fmt.Errorf("failed to commit room update: %w", err)
	}

	return s.GetRoom(ctx, id)
}

// DeleteRoom removes a room and cascades to its tasks and their photos.
// Returns the URLs of every deleted photo so the caller can remove the
// backing binaries. Double-delete is an error, never a silent success:
// that would mask client/server divergence.
func (s *Store) DeleteRoom(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return nil, apperr.Validationf("id is required")
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Collect photo URLs before the cascade wipes the rows.
	urls, err := collectURLs(ctx, tx, `
		SELECT p.url
		FROM task_photos p
		JOIN tasks t ON t.id = p.task_id
		WHERE t.room_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to collect photo urls for room %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete room %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check room delete: %w", err)
	}
	if affected == 0 {
		return nil, apperr.NotFoundf("room %s", id)
	}

	// Tasks changed too: the cascade removed every task in the room.
	if err := touchWatermark(ctx, tx, CollectionRooms); err != nil {
		return nil, err
	}
	if err := touchWatermark(ctx, tx, CollectionTasks); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit room delete: %w", err)
	}

	return urls, nil
}

// collectURLs runs a single-column query inside tx and returns the values.
func collectURLs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// scanRoom reads a single room row.
func scanRoom(row *sql.Row) (types.Room, error) {
	var room types.Room
	var createdAt string

	err := row.Scan(&room.ID, &room.Name, &room.Description, &room.Color, &createdAt)
	if err != nil {
		return types.Room{}, err
	}

	room.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return types.Room{}, fmt.Errorf("failed to parse created_at for room %s: %w", room.ID, err)
	}
	return room, nil
}

// scanRooms reads multiple room rows.
func scanRooms(rows *sql.Rows) ([]types.Room, error) {
	rooms := []types.Room{}
	for rows.Next() {
		var room types.Room
		var createdAt string

		if err := rows.Scan(&room.ID, &room.Name, &room.Description, &room.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for room %s: %w", room.ID, err)
		}
		room.CreatedAt = t
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}
	return rooms, nil
}
