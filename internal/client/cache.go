package client

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mdejong/klusjes/internal/types"
)

// pendingTTL is how long a locally written entry resists being overwritten
// by server snapshots. After this window an unconfirmed optimistic write
// yields to whatever the server says.
const pendingTTL = 30 * time.Second

// Cache file names inside the cache directory
const (
	roomsFile   = "rooms.json"
	tasksFile   = "tasks.json"
	pendingFile = "pending.json"
)

// OpKind identifies a queued offline mutation
type OpKind string

const (
	OpCreateRoom  OpKind = "create_room"
	OpUpdateRoom  OpKind = "update_room"
	OpDeleteRoom  OpKind = "delete_room"
	OpCreateTask  OpKind = "create_task"
	OpUpdateTask  OpKind = "update_task"
	OpAdvanceTask OpKind = "advance_task"
	OpDeleteTask  OpKind = "delete_task"
)

// PendingOp is one mutation performed while the server was unreachable,
// queued for replay. Create ops carry locally minted ids that get remapped
// to server ids during replay.
type PendingOp struct {
	Kind     OpKind      `json:"kind"`
	TargetID string      `json:"targetId,omitempty"`
	Room     *types.Room `json:"room,omitempty"`
	Task     *types.Task `json:"task,omitempty"`
	Queued   time.Time   `json:"queued"`
}

// pendingState is what pending.json holds
type pendingState struct {
	Ops []PendingOp `json:"ops"`
}

// Cache is the client's local mirror of the server collections. Reads are
// always served from memory. Local mutations land immediately and are
// tagged pending so the next server snapshot does not wipe them out before
// the server has seen them. The mirrors persist to JSON files in the cache
// directory so a restart without network still has data.
type Cache struct {
	dir    string
	logger *log.Logger

	mu       sync.RWMutex
	rooms    []types.Room
	tasks    []types.Task
	haveData bool

	// id → when the entry was written locally
	pendingRooms map[string]time.Time
	pendingTasks map[string]time.Time

	// id → when the entry was deleted locally, so snapshots that still
	// contain it do not resurrect it
	deletedRooms map[string]time.Time
	deletedTasks map[string]time.Time

	ops []PendingOp

	subsMu sync.Mutex
	subs   []chan struct{}
}

// NewCache creates a cache rooted at dir
func NewCache(dir string, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		dir:          dir,
		logger:       logger,
		pendingRooms: make(map[string]time.Time),
		pendingTasks: make(map[string]time.Time),
		deletedRooms: make(map[string]time.Time),
		deletedTasks: make(map[string]time.Time),
	}
}

// Dir returns the cache directory
func (c *Cache) Dir() string {
	return c.dir
}

// Load reads the persisted mirrors and pending-op log. Missing files are
// fine; corrupt files are discarded with a warning.
func (c *Cache) Load() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var rooms []types.Room
	if c.readFile(roomsFile, &rooms) {
		c.rooms = rooms
		c.haveData = true
	}
	var tasks []types.Task
	if c.readFile(tasksFile, &tasks) {
		c.tasks = tasks
		c.haveData = true
	}
	var pending pendingState
	if c.readFile(pendingFile, &pending) {
		c.ops = pending.Ops
	}
	return nil
}

// readFile loads one JSON file under the cache dir, reporting success
func (c *Cache) readFile(name string, dst any) bool {
	data, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Printf("[cache] failed to read %s: %v", name, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Printf("[cache] discarding corrupt %s: %v", name, err)
		return false
	}
	return true
}

// writeFile persists one JSON file using write-then-rename
func (c *Cache) writeFile(name string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		c.logger.Printf("[cache] failed to marshal %s: %v", name, err)
		return
	}
	path := filepath.Join(c.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		c.logger.Printf("[cache] failed to write %s: %v", name, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		c.logger.Printf("[cache] failed to replace %s: %v", name, err)
	}
}

// HasData reports whether the cache holds anything to render
func (c *Cache) HasData() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.haveData
}

// Rooms returns a copy of the cached rooms
func (c *Cache) Rooms() []types.Room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Room, len(c.rooms))
	copy(out, c.rooms)
	return out
}

// Tasks returns a copy of the cached tasks, optionally filtered by room,
// in the canonical display order.
func (c *Cache) Tasks(roomID string) []types.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.Task
	for _, t := range c.tasks {
		if roomID == "" || t.RoomID == roomID {
			out = append(out, t)
		}
	}
	sortTasks(out)
	return out
}

// Room looks up one cached room by id
func (c *Cache) Room(id string) (types.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return types.Room{}, false
}

// Task looks up one cached task by id
func (c *Cache) Task(id string) (types.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return types.Task{}, false
}

// SetRoomsSnapshot replaces the room mirror with server state. Entries the
// client wrote locally within the pending window keep their local version;
// entries deleted locally stay gone. A snapshot that contains a pending id
// confirms it and clears the tag.
func (c *Cache) SetRoomsSnapshot(rooms []types.Room) {
	c.mu.Lock()

	merged := make([]types.Room, 0, len(rooms))
	seen := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		if c.isDeleted(c.deletedRooms, r.ID) {
			continue
		}
		seen[r.ID] = true
		// Server knows the id now; the pending tag served its purpose.
		delete(c.pendingRooms, r.ID)
		merged = append(merged, r)
	}
	// Keep locally created rooms the server has not echoed back yet.
	for _, r := range c.rooms {
		if seen[r.ID] {
			continue
		}
		if c.isPending(c.pendingRooms, r.ID) {
			merged = append(merged, r)
		}
	}

	c.rooms = merged
	c.haveData = true
	c.writeFile(roomsFile, c.rooms)
	c.mu.Unlock()

	c.notify()
}

// SetTasksSnapshot replaces the task mirror with server state, with the
// same pending and deleted handling as SetRoomsSnapshot.
func (c *Cache) SetTasksSnapshot(tasks []types.Task) {
	c.mu.Lock()

	merged := make([]types.Task, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if c.isDeleted(c.deletedTasks, t.ID) {
			continue
		}
		seen[t.ID] = true
		if c.isPending(c.pendingTasks, t.ID) {
			delete(c.pendingTasks, t.ID)
			// Prefer the local version while an unreplayed op still
			// references this task.
			if local, ok := c.taskLocked(t.ID); ok && c.hasOpFor(t.ID) {
				merged = append(merged, local)
				continue
			}
		}
		merged = append(merged, t)
	}
	for _, t := range c.tasks {
		if seen[t.ID] {
			continue
		}
		if c.isPending(c.pendingTasks, t.ID) {
			merged = append(merged, t)
		}
	}

	c.tasks = merged
	c.haveData = true
	c.writeFile(tasksFile, c.tasks)
	c.mu.Unlock()

	c.notify()
}

func (c *Cache) taskLocked(id string) (types.Task, bool) {
	for _, t := range c.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return types.Task{}, false
}

func (c *Cache) hasOpFor(id string) bool {
	for _, op := range c.ops {
		if op.TargetID == id {
			return true
		}
		if op.Task != nil && op.Task.ID == id {
			return true
		}
	}
	return false
}

// isPending reports whether the id is inside its pending window
func (c *Cache) isPending(marks map[string]time.Time, id string) bool {
	mark, ok := marks[id]
	if !ok {
		return false
	}
	if time.Since(mark) > pendingTTL {
		delete(marks, id)
		return false
	}
	return true
}

// isDeleted reports whether the id was deleted locally recently enough
// that snapshots should still hide it
func (c *Cache) isDeleted(marks map[string]time.Time, id string) bool {
	mark, ok := marks[id]
	if !ok {
		return false
	}
	if time.Since(mark) > pendingTTL {
		delete(marks, id)
		return false
	}
	return true
}

// UpsertRoom writes a room into the mirror. When pending is true the entry
// is protected from snapshot overwrites for the pending window.
func (c *Cache) UpsertRoom(room types.Room, pending bool) {
	c.mu.Lock()
	replaced := false
	for i, r := range c.rooms {
		if r.ID == room.ID {
			c.rooms[i] = room
			replaced = true
			break
		}
	}
	if !replaced {
		c.rooms = append(c.rooms, room)
	}
	if pending {
		c.pendingRooms[room.ID] = time.Now()
	} else {
		delete(c.pendingRooms, room.ID)
	}
	delete(c.deletedRooms, room.ID)
	c.haveData = true
	c.writeFile(roomsFile, c.rooms)
	c.mu.Unlock()

	c.notify()
}

// UpsertTask writes a task into the mirror, same contract as UpsertRoom
func (c *Cache) UpsertTask(task types.Task, pending bool) {
	c.mu.Lock()
	replaced := false
	for i, t := range c.tasks {
		if t.ID == task.ID {
			c.tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		c.tasks = append(c.tasks, task)
	}
	if pending {
		c.pendingTasks[task.ID] = time.Now()
	} else {
		delete(c.pendingTasks, task.ID)
	}
	delete(c.deletedTasks, task.ID)
	c.haveData = true
	c.writeFile(tasksFile, c.tasks)
	c.mu.Unlock()

	c.notify()
}

// RemoveRoom drops a room and its tasks from the mirror. When pending is
// true incoming snapshots keep hiding the id for the pending window.
func (c *Cache) RemoveRoom(id string, pending bool) {
	c.mu.Lock()
	rooms := c.rooms[:0]
	for _, r := range c.rooms {
		if r.ID != id {
			rooms = append(rooms, r)
		}
	}
	c.rooms = rooms

	tasks := c.tasks[:0]
	for _, t := range c.tasks {
		if t.RoomID == id {
			if pending {
				c.deletedTasks[t.ID] = time.Now()
			}
			delete(c.pendingTasks, t.ID)
			continue
		}
		tasks = append(tasks, t)
	}
	c.tasks = tasks

	delete(c.pendingRooms, id)
	if pending {
		c.deletedRooms[id] = time.Now()
	}
	c.writeFile(roomsFile, c.rooms)
	c.writeFile(tasksFile, c.tasks)
	c.mu.Unlock()

	c.notify()
}

// RemoveTask drops a task from the mirror
func (c *Cache) RemoveTask(id string, pending bool) {
	c.mu.Lock()
	tasks := c.tasks[:0]
	for _, t := range c.tasks {
		if t.ID != id {
			tasks = append(tasks, t)
		}
	}
	c.tasks = tasks
	delete(c.pendingTasks, id)
	if pending {
		c.deletedTasks[id] = time.Now()
	}
	c.writeFile(tasksFile, c.tasks)
	c.mu.Unlock()

	c.notify()
}

// RemapRoomID rewrites a locally minted room id to the server-issued one,
// in the room mirror, task references, and queued ops.
func (c *Cache) RemapRoomID(localID string, room types.Room) {
	c.mu.Lock()
	for i, r := range c.rooms {
		if r.ID == localID {
			c.rooms[i] = room
		}
	}
	for i := range c.tasks {
		if c.tasks[i].RoomID == localID {
			c.tasks[i].RoomID = room.ID
		}
	}
	for i := range c.ops {
		if c.ops[i].TargetID == localID {
			c.ops[i].TargetID = room.ID
		}
		if c.ops[i].Task != nil && c.ops[i].Task.RoomID == localID {
			c.ops[i].Task.RoomID = room.ID
		}
		if c.ops[i].Room != nil && c.ops[i].Room.ID == localID {
			c.ops[i].Room.ID = room.ID
		}
	}
	delete(c.pendingRooms, localID)
	c.pendingRooms[room.ID] = time.Now()
	c.writeFile(roomsFile, c.rooms)
	c.writeFile(tasksFile, c.tasks)
	c.writeFile(pendingFile, pendingState{Ops: c.ops})
	c.mu.Unlock()

	c.notify()
}

// RemapTaskID rewrites a locally minted task id to the server-issued one
func (c *Cache) RemapTaskID(localID string, task types.Task) {
	c.mu.Lock()
	for i, t := range c.tasks {
		if t.ID == localID {
			c.tasks[i] = task
		}
	}
	for i := range c.ops {
		if c.ops[i].TargetID == localID {
			c.ops[i].TargetID = task.ID
		}
		if c.ops[i].Task != nil && c.ops[i].Task.ID == localID {
			c.ops[i].Task.ID = task.ID
		}
	}
	delete(c.pendingTasks, localID)
	c.pendingTasks[task.ID] = time.Now()
	c.writeFile(tasksFile, c.tasks)
	c.writeFile(pendingFile, pendingState{Ops: c.ops})
	c.mu.Unlock()

	c.notify()
}

// QueueOp appends a mutation to the offline replay log
func (c *Cache) QueueOp(op PendingOp) {
	c.mu.Lock()
	if op.Queued.IsZero() {
		op.Queued = time.Now()
	}
	c.ops = append(c.ops, op)
	c.writeFile(pendingFile, pendingState{Ops: c.ops})
	c.mu.Unlock()
}

// Ops returns a copy of the queued mutations in order
func (c *Cache) Ops() []PendingOp {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PendingOp, len(c.ops))
	copy(out, c.ops)
	return out
}

// DropOp removes the first queued op, after it was replayed or judged
// unreplayable
func (c *Cache) DropOp() {
	c.mu.Lock()
	if len(c.ops) > 0 {
		c.ops = c.ops[1:]
	}
	c.writeFile(pendingFile, pendingState{Ops: c.ops})
	c.mu.Unlock()
}

// Subscribe returns a channel that receives a signal whenever the cache
// content changes. Signals coalesce; receivers re-read the mirrors.
func (c *Cache) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	c.subs = append(c.subs, ch)
	c.subsMu.Unlock()
	return ch
}

func (c *Cache) notify() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// sortTasks applies the canonical display order: priority tasks first,
// then oldest first
func sortTasks(tasks []types.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority
		}
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
