package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/imaging"
)

// maxUploadBytes bounds the raw multipart body before any processing
const maxUploadBytes = 20 << 20

// photoRequest is the JSON body for photo delete
type photoRequest struct {
	ID string `json:"id"`
}

// uploadResponse is returned after a successful photo upload
type uploadResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Size int    `json:"size"`
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listPhotos(w, r)
	case http.MethodDelete:
		s.deletePhoto(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) listPhotos(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("taskId")
	if taskID == "" {
		s.writeError(w, apperr.Validationf("taskId query parameter is required"))
		return
	}
	photos, err := s.store.ListPhotos(r.Context(), taskID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, photos)
}

func (s *Server) deletePhoto(w http.ResponseWriter, r *http.Request) {
	var req photoRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.ID == "" {
		s.writeError(w, apperr.Validationf("photo id is required"))
		return
	}
	url, err := s.store.DeletePhoto(r.Context(), req.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.removeUploads([]string{url})
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleUpload accepts a multipart photo, pipes it through the processing
// pipeline and records it against the task. The stored file is always JPEG
// regardless of the uploaded format.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, apperr.Validationf("invalid multipart body: %v", err))
		return
	}

	taskID := r.FormValue("taskId")
	if taskID == "" {
		s.writeError(w, apperr.Validationf("taskId form field is required"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		s.writeError(w, apperr.Validationf("photo form field is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	processed, err := imaging.Process(file, contentType)
	if err != nil {
		s.writeError(w, err)
		return
	}

	name := fmt.Sprintf("%s.jpg", uuid.NewString())
	path := filepath.Join(s.uploadsDir, name)
	if err := os.WriteFile(path, processed, 0o644); err != nil {
		s.writeError(w, apperr.Internal(fmt.Errorf("failed to store upload: %w", err)))
		return
	}

	photo, err := s.store.CreatePhoto(r.Context(), taskID, "/uploads/"+name)
	if err != nil {
		// Keep the uploads directory consistent with the database.
		_ = os.Remove(path)
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, uploadResponse{
		ID:   photo.ID,
		URL:  photo.URL,
		Size: len(processed),
	})
}
