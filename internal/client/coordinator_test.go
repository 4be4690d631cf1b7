package client

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mdejong/klusjes/internal/feed"
	"github.com/mdejong/klusjes/internal/httpapi"
	"github.com/mdejong/klusjes/internal/store"
	"github.com/mdejong/klusjes/internal/types"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func quietFeedConfig() *feed.ClientConfig {
	return &feed.ClientConfig{
		MaxAttempts: 2,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Logger:      testLogger(),
	}
}

// startBackend serves the real API on the given listener
func startBackend(t *testing.T, ln net.Listener) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "backend.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv := httpapi.NewServer(st, &httpapi.Config{
		UploadsDir: filepath.Join(t.TempDir(), "uploads"),
		Feed:       &feed.PublisherConfig{PollInterval: 20 * time.Millisecond, Logger: testLogger()},
		Logger:     testLogger(),
	})
	hs := &http.Server{Handler: srv.Handler()}
	go func() { _ = hs.Serve(ln) }()
	t.Cleanup(func() { _ = hs.Close() })

	return st
}

func newCoordinator(t *testing.T, api *API, seed func() ([]types.Room, []types.Task)) *Coordinator {
	t.Helper()
	cache := NewCache(t.TempDir(), testLogger())
	c := NewCoordinator(api, cache, &CoordinatorConfig{
		RefreshInterval: time.Hour,
		FeedConfig:      quietFeedConfig(),
		Seed:            seed,
		Logger:          testLogger(),
	})
	return c
}

// With a reachable server the initial load comes from the network
func TestCoordinator_InitialLoadFromServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	st := startBackend(t, ln)

	room, err := st.CreateRoom(context.Background(), "Keuken", "", "")
	if err != nil {
		t.Fatalf("failed to create room: %v", err)
	}

	c := newCoordinator(t, NewAPI("http://"+ln.Addr().String()), nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start coordinator: %v", err)
	}
	defer c.Stop()

	if !c.Online() {
		t.Error("coordinator reports offline with reachable server")
	}
	if c.Phase() != PhasePolling {
		t.Errorf("phase = %s, want %s", c.Phase(), PhasePolling)
	}
	if _, ok := c.Cache().Room(room.ID); !ok {
		t.Error("server room missing from cache after initial load")
	}
}

// With no server and no cache the coordinator falls back to seed data
// and still becomes ready
func TestCoordinator_SeedFallback(t *testing.T) {
	seed := func() ([]types.Room, []types.Task) {
		rooms := []types.Room{{ID: "room_seed", Name: "Woonkamer", CreatedAt: time.Now()}}
		tasks := []types.Task{{ID: "task_seed", RoomID: "room_seed", Title: "Stofzuigen", Status: types.StatusTodo, CreatedAt: time.Now()}}
		return rooms, tasks
	}

	c := newCoordinator(t, NewAPI("http://127.0.0.1:1"), seed)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start coordinator: %v", err)
	}
	defer c.Stop()

	if c.Online() {
		t.Error("coordinator reports online with no server")
	}
	if c.Phase() != PhasePolling {
		t.Errorf("phase = %s, want %s", c.Phase(), PhasePolling)
	}
	if _, ok := c.Cache().Room("room_seed"); !ok {
		t.Error("seed room missing from cache")
	}
	if tasks := c.Cache().Tasks(""); len(tasks) != 1 {
		t.Errorf("seeded tasks = %+v, want one", tasks)
	}
}

// A populated persisted cache wins over seed data when offline
func TestCoordinator_PersistedCacheBeatsSeed(t *testing.T) {
	dir := t.TempDir()
	prior := NewCache(dir, testLogger())
	if err := prior.Load(); err != nil {
		t.Fatalf("failed to load cache: %v", err)
	}
	prior.UpsertRoom(types.Room{ID: "room_old", Name: "Slaapkamer", CreatedAt: time.Now()}, false)

	seedCalled := false
	cache := NewCache(dir, testLogger())
	c := NewCoordinator(NewAPI("http://127.0.0.1:1"), cache, &CoordinatorConfig{
		RefreshInterval: time.Hour,
		FeedConfig:      quietFeedConfig(),
		Seed: func() ([]types.Room, []types.Task) {
			seedCalled = true
			return nil, nil
		},
		Logger: testLogger(),
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start coordinator: %v", err)
	}
	defer c.Stop()

	if seedCalled {
		t.Error("seed used despite persisted cache data")
	}
	if _, ok := c.Cache().Room("room_old"); !ok {
		t.Error("persisted room missing from cache")
	}
}

// Offline mutations apply to the cache immediately, queue for replay, and
// land on the server with remapped ids once it is reachable again.
func TestCoordinator_OfflineQueueAndReplay(t *testing.T) {
	ctx := context.Background()

	// Reserve an address, then shut it down so the coordinator starts
	// against a dead server.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := newCoordinator(t, NewAPI("http://"+addr), nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start coordinator: %v", err)
	}
	defer c.Stop()

	room, err := c.CreateRoom(ctx, "Keuken", "", "#f59e0b")
	if err != nil {
		t.Fatalf("offline create room failed: %v", err)
	}
	if !strings.Contains(room.ID, "local") {
		t.Errorf("offline room id = %q, want locally minted id", room.ID)
	}

	task, err := c.CreateTask(ctx, types.Task{Title: "Afwas doen", RoomID: room.ID, Priority: true})
	if err != nil {
		t.Fatalf("offline create task failed: %v", err)
	}
	if _, err := c.AdvanceTask(ctx, task.ID); err != nil {
		t.Fatalf("offline advance failed: %v", err)
	}

	if ops := c.Cache().Ops(); len(ops) != 3 {
		t.Fatalf("queued ops = %d, want 3", len(ops))
	}

	// Bring the server up on the reserved address and force a refresh.
	ln2, err := net.Listen("tcp", addr)
	if err != nil {
		t.Skipf("could not rebind %s: %v", addr, err)
	}
	st := startBackend(t, ln2)
	c.refreshOnce()

	if !c.Online() {
		t.Fatal("coordinator still offline after successful refresh")
	}
	if ops := c.Cache().Ops(); len(ops) != 0 {
		t.Fatalf("ops after replay = %+v, want none", ops)
	}

	rooms, err := st.ListRooms(ctx)
	if err != nil {
		t.Fatalf("failed to list server rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Name != "Keuken" {
		t.Fatalf("server rooms after replay = %+v", rooms)
	}

	tasks, err := st.ListTasks(ctx, rooms[0].ID)
	if err != nil {
		t.Fatalf("failed to list server tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Afwas doen" {
		t.Fatalf("server tasks after replay = %+v", tasks)
	}
	if tasks[0].Status != types.StatusInProgress {
		t.Errorf("replayed task status = %s, want %s", tasks[0].Status, types.StatusInProgress)
	}

	// Cache no longer references the local ids.
	for _, cached := range c.Cache().Tasks("") {
		if strings.Contains(cached.ID, "local") || strings.Contains(cached.RoomID, "local") {
			t.Errorf("cache still holds local id: %+v", cached)
		}
	}
}

// Rejected mutations surface as errors but never roll back what the user
// already sees
func TestCoordinator_RejectionsDoNotRollBack(t *testing.T) {
	ctx := context.Background()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	startBackend(t, ln)

	c := newCoordinator(t, NewAPI("http://"+ln.Addr().String()), nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start coordinator: %v", err)
	}
	defer c.Stop()

	room, err := c.CreateRoom(ctx, "Badkamer", "", "")
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	bad := room
	bad.Name = ""
	if _, err := c.UpdateRoom(ctx, bad); err == nil {
		t.Fatal("expected validation error for empty room name")
	}

	cached, ok := c.Cache().Room(room.ID)
	if !ok {
		t.Fatal("room vanished after rejected update")
	}
	if cached.Name != "Badkamer" {
		t.Errorf("cached room name = %q, want Badkamer", cached.Name)
	}
}

// Offline advances mirror the server's completion stamp rule
func TestCoordinator_OfflineAdvanceStampsCompletion(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, NewAPI("http://127.0.0.1:1"), nil)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("failed to start coordinator: %v", err)
	}
	defer c.Stop()

	room, err := c.CreateRoom(ctx, "Kantoor", "", "")
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	task, err := c.CreateTask(ctx, types.Task{Title: "Bureau opruimen", RoomID: room.ID})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		task, err = c.AdvanceTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("advance %d failed: %v", i+1, err)
		}
	}
	if task.Status != types.StatusCompleted {
		t.Fatalf("status after three advances = %s, want %s", task.Status, types.StatusCompleted)
	}
	if task.CompletedAt == nil {
		t.Fatal("completed task has no completion timestamp")
	}

	task, err = c.AdvanceTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("wrap-around advance failed: %v", err)
	}
	if task.Status != types.StatusTodo || task.CompletedAt != nil {
		t.Errorf("after wrap-around: status = %s completedAt = %v, want todo and nil", task.Status, task.CompletedAt)
	}
}
