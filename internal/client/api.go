// Package client contains the consumer side of the sync protocol: an HTTP
// API wrapper, a persistent optimistic cache, and a coordinator that keeps
// the cache converging on server state while staying usable offline.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/types"
)

// API is a thin HTTP wrapper over the server endpoints. Transport-level
// failures surface as connectivity errors so callers can distinguish
// "server said no" from "server unreachable".
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI creates an API client for the given base URL, e.g.
// "http://localhost:8008".
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseURL returns the configured server address
func (a *API) BaseURL() string {
	return a.baseURL
}

// FeedURL returns the websocket address of the change feed
func (a *API) FeedURL() string {
	u := a.baseURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/api/events"
}

// Ping reports whether the server is reachable
func (a *API) Ping(ctx context.Context) error {
	return a.call(ctx, http.MethodGet, "/health", nil, nil)
}

// ListRooms fetches all rooms
func (a *API) ListRooms(ctx context.Context) ([]types.Room, error) {
	var rooms []types.Room
	if err := a.call(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// CreateRoom creates a room on the server
func (a *API) CreateRoom(ctx context.Context, name, description, color string) (types.Room, error) {
	var room types.Room
	body := map[string]string{"name": name, "description": description, "color": color}
	err := a.call(ctx, http.MethodPost, "/api/rooms", body, &room)
	return room, err
}

// UpdateRoom replaces a room's fields
func (a *API) UpdateRoom(ctx context.Context, room types.Room) (types.Room, error) {
	var out types.Room
	body := map[string]string{
		"id":          room.ID,
		"name":        room.Name,
		"description": room.Description,
		"color":       room.Color,
	}
	err := a.call(ctx, http.MethodPut, "/api/rooms", body, &out)
	return out, err
}

// DeleteRoom removes a room and everything in it
func (a *API) DeleteRoom(ctx context.Context, id string) error {
	return a.call(ctx, http.MethodDelete, "/api/rooms", map[string]string{"id": id}, nil)
}

// ListTasks fetches tasks, optionally filtered by room
func (a *API) ListTasks(ctx context.Context, roomID string) ([]types.Task, error) {
	path := "/api/tasks"
	if roomID != "" {
		path += "?roomId=" + url.QueryEscape(roomID)
	}
	var tasks []types.Task
	if err := a.call(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// taskBody builds the full-replace JSON payload for a task
func taskBody(task types.Task) map[string]any {
	return map[string]any{
		"id":                task.ID,
		"title":             task.Title,
		"roomId":            task.RoomID,
		"description":       task.Description,
		"priority":          task.Priority,
		"status":            task.Status,
		"dueDate":           task.DueDate,
		"estimatedDuration": task.EstimatedDuration,
	}
}

// CreateTask creates a task on the server
func (a *API) CreateTask(ctx context.Context, task types.Task) (types.Task, error) {
	var out types.Task
	body := taskBody(task)
	delete(body, "id")
	err := a.call(ctx, http.MethodPost, "/api/tasks", body, &out)
	return out, err
}

// UpdateTask replaces a task's fields
func (a *API) UpdateTask(ctx context.Context, task types.Task) (types.Task, error) {
	var out types.Task
	err := a.call(ctx, http.MethodPut, "/api/tasks", taskBody(task), &out)
	return out, err
}

// AdvanceTask steps a task's status one position along the cycle
func (a *API) AdvanceTask(ctx context.Context, id string) (types.Task, error) {
	var out types.Task
	err := a.call(ctx, http.MethodPut, "/api/tasks", map[string]any{"id": id, "advance": true}, &out)
	return out, err
}

// DeleteTask removes a task and its photos
func (a *API) DeleteTask(ctx context.Context, id string) error {
	return a.call(ctx, http.MethodDelete, "/api/tasks", map[string]string{"id": id}, nil)
}

// ListPhotos fetches a task's photos, most recent first
func (a *API) ListPhotos(ctx context.Context, taskID string) ([]types.Photo, error) {
	var photos []types.Photo
	err := a.call(ctx, http.MethodGet, "/api/photos?taskId="+url.QueryEscape(taskID), nil, &photos)
	return photos, err
}

// DeletePhoto removes a photo and its stored binary
func (a *API) DeletePhoto(ctx context.Context, id string) error {
	return a.call(ctx, http.MethodDelete, "/api/photos", map[string]string{"id": id}, nil)
}

// UploadPhoto sends image data for a task. The server re-encodes and
// shrinks it, so any supported format is fine.
func (a *API) UploadPhoto(ctx context.Context, taskID, filename, contentType string, data io.Reader) (types.Photo, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("taskId", taskID); err != nil {
		return types.Photo{}, fmt.Errorf("failed to build upload: %w", err)
	}
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return types.Photo{}, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return types.Photo{}, fmt.Errorf("failed to read photo data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return types.Photo{}, fmt.Errorf("failed to finish upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/upload", &body)
	if err != nil {
		return types.Photo{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// The upload response carries id, url and size; fill in the rest.
	var out types.Photo
	if err := a.send(req, &out); err != nil {
		return types.Photo{}, err
	}
	out.TaskID = taskID
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	return out, nil
}

// call issues one JSON request against the server
func (a *API) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

// send executes the request and maps failures onto the error taxonomy
func (a *API) send(req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return apperr.Connectivity(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		msg := errBody.Error
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return apperr.NotFoundf("%s", msg)
		case http.StatusBadRequest:
			return apperr.Validationf("%s", msg)
		default:
			return apperr.Internal(fmt.Errorf("server returned %d: %s", resp.StatusCode, msg))
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
