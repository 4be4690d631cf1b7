package httpapi

import (
	"net/http"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/store"
	"github.com/mdejong/klusjes/internal/types"
)

// taskRequest is the JSON body for task create, update, advance and delete.
// Update replaces the whole task, so clients send every field.
type taskRequest struct {
	ID                string       `json:"id"`
	Title             string       `json:"title"`
	RoomID            string       `json:"roomId"`
	Description       string       `json:"description"`
	Priority          bool         `json:"priority"`
	Status            types.Status `json:"status"`
	DueDate           *types.Date  `json:"dueDate"`
	EstimatedDuration *int         `json:"estimatedDuration"`

	// Advance requests the single status-cycle step instead of a
	// full-field update.
	Advance bool `json:"advance"`
}

func (r taskRequest) params() store.TaskParams {
	return store.TaskParams{
		Title:             r.Title,
		RoomID:            r.RoomID,
		Description:       r.Description,
		Priority:          r.Priority,
		Status:            r.Status,
		DueDate:           r.DueDate,
		EstimatedDuration: r.EstimatedDuration,
	}
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTasks(w, r)
	case http.MethodPost:
		s.createTask(w, r)
	case http.MethodPut:
		s.updateTask(w, r)
	case http.MethodDelete:
		s.deleteTask(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context(), r.URL.Query().Get("roomId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	task, err := s.store.CreateTask(r.Context(), req.params())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, apperr.Validationf("task id is required"))
		return
	}

	var (
		task types.Task
		err  error
	)
	if req.Advance {
		task, err = s.store.AdvanceTask(r.Context(), req.ID)
	} else {
		task, err = s.store.UpdateTask(r.Context(), req.ID, req.params())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, apperr.Validationf("task id is required"))
		return
	}
	urls, err := s.store.DeleteTask(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.removeUploads(urls)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
