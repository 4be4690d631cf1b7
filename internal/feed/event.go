// Package feed provides the near-real-time change notification protocol:
// a server-side publisher that pushes full-collection snapshots to
// long-lived websocket connections, and a reconnecting client.
//
// The publisher does not diff rows. Each connection runs its own loop that
// compares the store's per-collection watermarks against the last value
// pushed to that connection, and re-sends the whole collection when the
// watermark advances. Bandwidth is traded for simplicity, which is
// acceptable at household data volumes.
package feed

import (
	"time"

	"github.com/mdejong/klusjes/internal/types"
)

// EventType identifies the kind of feed event.
type EventType string

const (
	// EventConnected is emitted once when a connection is established.
	EventConnected EventType = "connected"

	// EventRoomsUpdated carries a full snapshot of the rooms collection.
	EventRoomsUpdated EventType = "rooms_updated"

	// EventTasksUpdated carries a full snapshot of the tasks collection,
	// photos included.
	EventTasksUpdated EventType = "tasks_updated"

	// EventHeartbeat is emitted periodically regardless of data changes,
	// so clients can detect silent connection death.
	EventHeartbeat EventType = "heartbeat"

	// EventError signals a fatal fault. The server emits it before closing
	// a connection; the client synthesizes one when its reconnect budget
	// runs out, just before the Events channel closes.
	EventError EventType = "error"
)

// Event is a single feed message. IDs increase monotonically within one
// connection; no ordering holds across connections or relative to polling.
type Event struct {
	ID        int64        `json:"id"`
	Type      EventType    `json:"type"`
	Rooms     []types.Room `json:"rooms,omitempty"`
	Tasks     []types.Task `json:"tasks,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// newEvent stamps an event with the next sequence id and the current time.
func newEvent(seq *int64, typ EventType) Event {
	ev := Event{
		ID:        *seq,
		Type:      typ,
		Timestamp: time.Now().Unix(),
	}
	*seq++
	return ev
}
