// Package httpapi exposes the household data over HTTP: JSON CRUD
// endpoints for rooms, tasks and photos, a multipart photo upload
// endpoint, static serving of stored photo binaries, and the websocket
// change feed.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/feed"
	"github.com/mdejong/klusjes/internal/store"
)

// Config holds server configuration
type Config struct {
	// Port to listen on (default: 8008)
	Port int

	// UploadsDir is where photo binaries are stored (default: ./uploads)
	UploadsDir string

	// Feed configures the change feed publisher (default: DefaultPublisherConfig)
	Feed *feed.PublisherConfig

	// Logger for request and lifecycle activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Port:       8008,
		UploadsDir: "uploads",
		Logger:     log.Default(),
	}
}

// Server owns the HTTP listener and the feed publisher. Create with
// NewServer, then Start and Stop.
type Server struct {
	addr       string
	uploadsDir string
	store      *store.Store
	publisher  *feed.Publisher
	logger     *log.Logger

	listener net.Listener
	server   *http.Server

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates an API server backed by the given store
func NewServer(st *store.Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Port == 0 {
		config.Port = 8008
	}
	if config.UploadsDir == "" {
		config.UploadsDir = "uploads"
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	feedConfig := config.Feed
	if feedConfig == nil {
		feedConfig = feed.DefaultPublisherConfig()
	}
	if feedConfig.Logger == nil {
		feedConfig.Logger = config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:       fmt.Sprintf(":%d", config.Port),
		uploadsDir: config.UploadsDir,
		store:      st,
		publisher:  feed.NewPublisher(st, feedConfig),
		logger:     config.Logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Addr returns the bound listen address once Start has succeeded
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms", s.handleRooms)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/photos", s.handlePhotos)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.Handle("/api/events", s.publisher)
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadsDir))))
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start binds the listener and begins serving requests
func (s *Server) Start() error {
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create uploads directory: %w", err)
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("[api] listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("[api] server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and the feed publisher
func (s *Server) Stop() error {
	s.logger.Println("[api] stopping server")
	s.cancel()
	s.publisher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	s.logger.Println("[api] server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.publisher.ClientCount(),
	})
}

// writeJSON encodes v with the usual headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("[api] failed to write response: %v", err)
	}
}

// writeError maps domain errors onto HTTP statuses. Internal faults are
// logged in full but reported generically.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		s.logger.Printf("[api] internal error: %v", err)
	}
	s.writeJSON(w, status, map[string]string{"error": apperr.HTTPMessage(err)})
}

// decodeBody parses a JSON request body into dst
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validationf("invalid request body: %v", err)
	}
	return nil
}

// removeUploads deletes stored binaries for the given photo URLs. Failures
// are logged and otherwise ignored; the database rows are already gone.
func (s *Server) removeUploads(urls []string) {
	for _, u := range urls {
		name := filepath.Base(strings.TrimSuffix(u, "/"))
		if name == "" || name == "." || name == "/" {
			continue
		}
		path := filepath.Join(s.uploadsDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Printf("[api] failed to remove upload %s: %v", path, err)
		}
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
}
