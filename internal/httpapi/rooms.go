package httpapi

import (
	"net/http"

	"github.com/mdejong/klusjes/internal/apperr"
)

// roomRequest is the JSON body for room create, update and delete
type roomRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRooms(w, r)
	case http.MethodPost:
		s.createRoom(w, r)
	case http.MethodPut:
		s.updateRoom(w, r)
	case http.MethodDelete:
		s.deleteRoom(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.store.ListRooms(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	room, err := s.store.CreateRoom(r.Context(), req.Name, req.Description, req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, room)
}

func (s *Server) updateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, apperr.Validationf("room id is required"))
		return
	}
	room, err := s.store.UpdateRoom(r.Context(), req.ID, req.Name, req.Description, req.Color)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, room)
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, apperr.Validationf("room id is required"))
		return
	}
	urls, err := s.store.DeleteRoom(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.removeUploads(urls)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
