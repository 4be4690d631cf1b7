package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mdejong/klusjes/internal/apperr"
	"github.com/mdejong/klusjes/internal/feed"
	"github.com/mdejong/klusjes/internal/types"
)

// Phase describes how far the coordinator has come. It only moves forward:
// once data is available the UI never shows a loading state again.
type Phase int32

const (
	// PhaseLoading means the initial data load has not finished yet
	PhaseLoading Phase = iota

	// PhaseReady means data is available to render
	PhaseReady

	// PhasePolling means the periodic refresh loop is active on top of
	// ready data
	PhasePolling
)

// String returns a human-readable phase name
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhasePolling:
		return "polling"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// CoordinatorConfig holds coordinator configuration
type CoordinatorConfig struct {
	// RefreshInterval is how often the server is re-queried as a safety
	// net under the push feed (default: 3s)
	RefreshInterval time.Duration

	// FeedConfig configures the change feed client (default: DefaultClientConfig)
	FeedConfig *feed.ClientConfig

	// Seed supplies starter data when neither the server nor the
	// persisted cache has anything (default: none)
	Seed func() ([]types.Room, []types.Task)

	// Logger for sync activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultCoordinatorConfig returns sensible defaults
func DefaultCoordinatorConfig() *CoordinatorConfig {
	return &CoordinatorConfig{
		RefreshInterval: 3 * time.Second,
		Logger:          log.Default(),
	}
}

// Coordinator keeps the local cache converging on server state. It loads
// initial data with a network-cache-seed fallback chain, consumes the push
// feed, refreshes periodically as a safety net, applies local mutations
// optimistically, and queues them for replay while the server is
// unreachable. Applied mutations are never rolled back; the server's next
// snapshot is the arbiter.
type Coordinator struct {
	api    *API
	cache  *Cache
	config *CoordinatorConfig
	logger *log.Logger

	phase    atomic.Int32
	online   atomic.Bool
	paused   atomic.Bool
	inFlight atomic.Bool

	feedMu sync.Mutex
	feedC  *feed.Client

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewCoordinator creates a coordinator over the given API and cache
func NewCoordinator(api *API, cache *Cache, config *CoordinatorConfig) *Coordinator {
	if config == nil {
		config = DefaultCoordinatorConfig()
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 3 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		api:    api,
		cache:  cache,
		config: config,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	c.phase.Store(int32(PhaseLoading))
	return c
}

// Phase reports the coordinator's lifecycle phase
func (c *Coordinator) Phase() Phase {
	return Phase(c.phase.Load())
}

// Online reports whether the server was reachable at last contact
func (c *Coordinator) Online() bool {
	return c.online.Load()
}

// Pause suspends periodic refreshes. Mutations still work; they queue
// while offline exactly as before.
func (c *Coordinator) Pause() {
	c.paused.Store(true)
}

// Resume re-enables periodic refreshes
func (c *Coordinator) Resume() {
	c.paused.Store(false)
}

// Cache exposes the underlying cache for reads and subscriptions
func (c *Coordinator) Cache() *Cache {
	return c.cache
}

// Start performs the initial load and launches the sync loops. After it
// returns without error the cache is populated and the phase is at least
// ready.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.cache.Load(); err != nil {
		return err
	}

	c.initialLoad(ctx)
	c.phase.Store(int32(PhaseReady))

	if c.online.Load() {
		c.replayQueued(ctx)
	}

	c.wg.Add(1)
	go c.refreshLoop()

	c.wg.Add(1)
	go c.feedLoop()

	c.phase.Store(int32(PhasePolling))
	return nil
}

// Stop shuts down the sync loops
func (c *Coordinator) Stop() {
	c.cancel()
	c.feedMu.Lock()
	if c.feedC != nil {
		c.feedC.Disconnect()
	}
	c.feedMu.Unlock()
	c.wg.Wait()
}

// initialLoad fills the cache from the first available source: the
// server, the persisted cache, or seed data.
func (c *Coordinator) initialLoad(ctx context.Context) {
	if err := c.fetchSnapshots(ctx); err == nil {
		c.online.Store(true)
		return
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		c.logger.Printf("[sync] initial load failed: %v", err)
	}

	c.online.Store(false)
	if c.cache.HasData() {
		c.logger.Printf("[sync] server unreachable, using persisted cache")
		return
	}

	if c.config.Seed != nil {
		c.logger.Printf("[sync] server unreachable and cache empty, seeding defaults")
		rooms, tasks := c.config.Seed()
		c.cache.SetRoomsSnapshot(rooms)
		c.cache.SetTasksSnapshot(tasks)
	}
}

// fetchSnapshots pulls both collections and applies them to the cache
func (c *Coordinator) fetchSnapshots(ctx context.Context) error {
	rooms, err := c.api.ListRooms(ctx)
	if err != nil {
		return err
	}
	tasks, err := c.api.ListTasks(ctx, "")
	if err != nil {
		return err
	}
	c.cache.SetRoomsSnapshot(rooms)
	c.cache.SetTasksSnapshot(tasks)
	return nil
}

// refreshLoop re-queries the server on a fixed cadence. It doubles as the
// connectivity probe: a refresh that succeeds while offline flips the
// coordinator back online and replays the queued mutations.
func (c *Coordinator) refreshLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.paused.Load() {
				continue
			}
			if !c.inFlight.CompareAndSwap(false, true) {
				continue
			}
			c.refreshOnce()
			c.inFlight.Store(false)
		}
	}
}

func (c *Coordinator) refreshOnce() {
	wasOffline := !c.online.Load()

	err := c.fetchSnapshots(c.ctx)
	switch {
	case err == nil:
		c.online.Store(true)
		if wasOffline {
			c.logger.Printf("[sync] server reachable again")
			c.replayQueued(c.ctx)
		}
	case errors.Is(err, apperr.ErrConnectivity):
		if !wasOffline {
			c.logger.Printf("[sync] server unreachable, switching to offline mode")
		}
		c.online.Store(false)
	default:
		c.logger.Printf("[sync] refresh failed: %v", err)
	}
}

// feedLoop maintains the push feed subscription. Exhausted feed clients
// are recreated after a refresh interval; polling carries the load in
// between.
func (c *Coordinator) feedLoop() {
	defer c.wg.Done()

	for {
		feedConfig := c.config.FeedConfig
		if feedConfig == nil {
			feedConfig = feed.DefaultClientConfig()
			feedConfig.Logger = c.logger
		}
		fc := feed.NewClient(c.api.FeedURL(), feedConfig)

		c.feedMu.Lock()
		c.feedC = fc
		c.feedMu.Unlock()

		if err := fc.Connect(c.ctx); err != nil {
			return
		}

		for ev := range fc.Events() {
			switch ev.Type {
			case feed.EventRoomsUpdated:
				c.cache.SetRoomsSnapshot(ev.Rooms)
			case feed.EventTasksUpdated:
				c.cache.SetTasksSnapshot(ev.Tasks)
			case feed.EventError:
				c.logger.Printf("[sync] feed error: %s", ev.Message)
			}
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.config.RefreshInterval):
			// New feed client, fresh reconnect budget.
		}
	}
}

// localID mints an id for an entity created while offline
func localID(prefix string) string {
	return prefix + "_local_" + uuid.NewString()
}

// CreateRoom creates a room, optimistically and immediately visible
func (c *Coordinator) CreateRoom(ctx context.Context, name, description, color string) (types.Room, error) {
	if room, err := c.api.CreateRoom(ctx, name, description, color); err == nil {
		c.cache.UpsertRoom(room, false)
		return room, nil
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		return types.Room{}, err
	}

	c.online.Store(false)
	room := types.Room{
		ID:          localID("room"),
		Name:        name,
		Description: description,
		Color:       color,
		CreatedAt:   time.Now(),
	}
	if err := room.Validate(); err != nil {
		return types.Room{}, err
	}
	c.cache.UpsertRoom(room, true)
	c.cache.QueueOp(PendingOp{Kind: OpCreateRoom, Room: &room})
	return room, nil
}

// UpdateRoom replaces a room's fields
func (c *Coordinator) UpdateRoom(ctx context.Context, room types.Room) (types.Room, error) {
	if err := room.Validate(); err != nil {
		return types.Room{}, err
	}

	if updated, err := c.api.UpdateRoom(ctx, room); err == nil {
		c.cache.UpsertRoom(updated, false)
		return updated, nil
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		return types.Room{}, err
	}

	c.online.Store(false)
	c.cache.UpsertRoom(room, true)
	c.cache.QueueOp(PendingOp{Kind: OpUpdateRoom, TargetID: room.ID, Room: &room})
	return room, nil
}

// DeleteRoom removes a room and everything in it
func (c *Coordinator) DeleteRoom(ctx context.Context, id string) error {
	if err := c.api.DeleteRoom(ctx, id); err == nil {
		c.cache.RemoveRoom(id, false)
		return nil
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		return err
	}

	c.online.Store(false)
	c.cache.RemoveRoom(id, true)
	c.cache.QueueOp(PendingOp{Kind: OpDeleteRoom, TargetID: id})
	return nil
}

// CreateTask creates a task, optimistically and immediately visible
func (c *Coordinator) CreateTask(ctx context.Context, task types.Task) (types.Task, error) {
	task.SetDefaults()

	if created, err := c.api.CreateTask(ctx, task); err == nil {
		c.cache.UpsertTask(created, false)
		return created, nil
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		return types.Task{}, err
	}

	c.online.Store(false)
	task.ID = localID("task")
	task.CreatedAt = time.Now()
	if task.Status == types.StatusCompleted && task.CompletedAt == nil {
		now := time.Now()
		task.CompletedAt = &now
	}
	if err := task.Validate(); err != nil {
		return types.Task{}, err
	}
	if _, ok := c.cache.Room(task.RoomID); !ok {
		return types.Task{}, apperr.NotFoundf("room %s not found", task.RoomID)
	}
	c.cache.UpsertTask(task, true)
	c.cache.QueueOp(PendingOp{Kind: OpCreateTask, Task: &task})
	return task, nil
}

// UpdateTask replaces a task's fields
func (c *Coordinator) UpdateTask(ctx context.Context, task types.Task) (types.Task, error) {
	if updated, err := c.api.UpdateTask(ctx, task); err == nil {
		c.cache.UpsertTask(updated, false)
		return updated, nil
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		return types.Task{}, err
	}

	c.online.Store(false)
	prior, ok := c.cache.Task(task.ID)
	if !ok {
		return types.Task{}, apperr.NotFoundf("task %s not found", task.ID)
	}
	applyCompletion(&task, prior)
	if err := task.Validate(); err != nil {
		return types.Task{}, err
	}
	c.cache.UpsertTask(task, true)
	c.cache.QueueOp(PendingOp{Kind: OpUpdateTask, TargetID: task.ID, Task: &task})
	return task, nil
}

// AdvanceTask steps a task's status one position along the cycle
func (c *Coordinator) AdvanceTask(ctx context.Context, id string) (types.Task, error) {
	if advanced, err := c.api.AdvanceTask(ctx, id); err == nil {
		c.cache.UpsertTask(advanced, false)
		return advanced, nil
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		return types.Task{}, err
	}

	c.online.Store(false)
	task, ok := c.cache.Task(id)
	if !ok {
		return types.Task{}, apperr.NotFoundf("task %s not found", id)
	}
	prior := task
	task.Status = task.Status.Advance()
	applyCompletion(&task, prior)
	c.cache.UpsertTask(task, true)
	c.cache.QueueOp(PendingOp{Kind: OpAdvanceTask, TargetID: id})
	return task, nil
}

// DeleteTask removes a task and its photos
func (c *Coordinator) DeleteTask(ctx context.Context, id string) error {
	if err := c.api.DeleteTask(ctx, id); err == nil {
		c.cache.RemoveTask(id, false)
		return nil
	} else if !errors.Is(err, apperr.ErrConnectivity) {
		return err
	}

	c.online.Store(false)
	if _, ok := c.cache.Task(id); !ok {
		return apperr.NotFoundf("task %s not found", id)
	}
	c.cache.RemoveTask(id, true)
	c.cache.QueueOp(PendingOp{Kind: OpDeleteTask, TargetID: id})
	return nil
}

// applyCompletion mirrors the server's completion-timestamp rule for
// offline edits: stamp on the transition into completed, keep it while
// staying completed, clear it otherwise.
func applyCompletion(task *types.Task, prior types.Task) {
	switch {
	case task.Status != types.StatusCompleted:
		task.CompletedAt = nil
	case prior.Status == types.StatusCompleted && prior.CompletedAt != nil:
		task.CompletedAt = prior.CompletedAt
	default:
		now := time.Now()
		task.CompletedAt = &now
	}
}

// replayQueued pushes the offline mutation log to the server in order.
// Locally minted ids are rewritten to server ids as create ops land. A
// connectivity failure stops the replay; the rest of the queue waits for
// the next reconnect. Ops the server rejects outright are dropped, since
// retrying them can never succeed.
func (c *Coordinator) replayQueued(ctx context.Context) {
	for {
		ops := c.cache.Ops()
		if len(ops) == 0 {
			return
		}
		op := ops[0]

		err := c.replayOne(ctx, op)
		if errors.Is(err, apperr.ErrConnectivity) {
			c.online.Store(false)
			return
		}
		if err != nil {
			c.logger.Printf("[sync] dropping unreplayable %s op: %v", op.Kind, err)
		}
		c.cache.DropOp()
	}
}

func (c *Coordinator) replayOne(ctx context.Context, op PendingOp) error {
	switch op.Kind {
	case OpCreateRoom:
		if op.Room == nil {
			return fmt.Errorf("create_room op has no room")
		}
		room, err := c.api.CreateRoom(ctx, op.Room.Name, op.Room.Description, op.Room.Color)
		if err != nil {
			return err
		}
		c.cache.RemapRoomID(op.Room.ID, room)
		return nil

	case OpUpdateRoom:
		if op.Room == nil {
			return fmt.Errorf("update_room op has no room")
		}
		room := *op.Room
		room.ID = op.TargetID
		updated, err := c.api.UpdateRoom(ctx, room)
		if err != nil {
			return err
		}
		c.cache.UpsertRoom(updated, false)
		return nil

	case OpDeleteRoom:
		return c.api.DeleteRoom(ctx, op.TargetID)

	case OpCreateTask:
		if op.Task == nil {
			return fmt.Errorf("create_task op has no task")
		}
		task, err := c.api.CreateTask(ctx, *op.Task)
		if err != nil {
			return err
		}
		c.cache.RemapTaskID(op.Task.ID, task)
		return nil

	case OpUpdateTask:
		if op.Task == nil {
			return fmt.Errorf("update_task op has no task")
		}
		task := *op.Task
		task.ID = op.TargetID
		updated, err := c.api.UpdateTask(ctx, task)
		if err != nil {
			return err
		}
		c.cache.UpsertTask(updated, false)
		return nil

	case OpAdvanceTask:
		advanced, err := c.api.AdvanceTask(ctx, op.TargetID)
		if err != nil {
			return err
		}
		c.cache.UpsertTask(advanced, false)
		return nil

	case OpDeleteTask:
		return c.api.DeleteTask(ctx, op.TargetID)

	default:
		return fmt.Errorf("unknown op kind %q", op.Kind)
	}
}
