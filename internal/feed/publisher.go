package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/mdejong/klusjes/internal/types"
)

// Source supplies the publisher with watermarks and collection snapshots.
// *store.Store satisfies it.
type Source interface {
	Watermark(ctx context.Context, collection string) (time.Time, error)
	ListRooms(ctx context.Context) ([]types.Room, error)
	ListTasks(ctx context.Context, roomID string) ([]types.Task, error)
}

// Collection names used against Source.Watermark. They mirror the
// store's watermark rows.
const (
	collectionRooms = "rooms"
	collectionTasks = "tasks"
)

// PublisherConfig holds publisher configuration
type PublisherConfig struct {
	// PollInterval is how often each connection checks watermarks (default: 1s)
	PollInterval time.Duration

	// HeartbeatInterval is how often idle connections receive a heartbeat
	// (default: 30s)
	HeartbeatInterval time.Duration

	// WriteTimeout bounds a single websocket write (default: 5s)
	WriteTimeout time.Duration

	// Logger for connection activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultPublisherConfig returns sensible defaults
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		PollInterval:      time.Second,
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      5 * time.Second,
		Logger:            log.Default(),
	}
}

// Publisher serves the change feed over websocket connections. Each
// connection gets its own watermark-polling loop, so a client that
// connects late still receives the current snapshots immediately.
type Publisher struct {
	source Source
	config *PublisherConfig
	logger *log.Logger

	clients atomic.Int64

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPublisher creates a feed publisher backed by the given source
func NewPublisher(source Source, config *PublisherConfig) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Publisher{
		source: source,
		config: config,
		logger: config.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// ClientCount reports the number of open feed connections
func (p *Publisher) ClientCount() int {
	return int(p.clients.Load())
}

// Stop closes all active feed connections and waits for their loops to exit
func (p *Publisher) Stop() {
	p.cancel()
	p.wg.Wait()
}

// ServeHTTP upgrades the request to a websocket and streams feed events
// until the client disconnects or the publisher stops.
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		p.logger.Printf("[feed] websocket upgrade failed: %v", err)
		return
	}

	p.wg.Add(1)
	defer p.wg.Done()
	p.clients.Add(1)
	defer p.clients.Add(-1)

	ctx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	// Detect client disconnect. The feed is write-only, so any read
	// result other than an incoming close is ignored.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	p.logger.Printf("[feed] client connected: %s", r.RemoteAddr)
	p.serveConn(ctx, conn)
	p.logger.Printf("[feed] client disconnected: %s", r.RemoteAddr)

	_ = conn.Close(websocket.StatusNormalClosure, "feed closed")
}

// serveConn runs one connection's event loop: a connected event first,
// then snapshot pushes whenever a watermark advances past the value last
// pushed on this connection, with heartbeats in between.
func (p *Publisher) serveConn(ctx context.Context, conn *websocket.Conn) {
	var seq int64 = 1

	ev := newEvent(&seq, EventConnected)
	ev.Message = "feed established"
	if err := p.write(ctx, conn, ev); err != nil {
		return
	}

	// Zero values guarantee the first poll pushes initial snapshots.
	var lastRooms, lastTasks time.Time

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(p.config.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-poll.C:
			if err := p.pushChanges(ctx, conn, &seq, &lastRooms, &lastTasks); err != nil {
				return
			}

		case <-heartbeat.C:
			if err := p.write(ctx, conn, newEvent(&seq, EventHeartbeat)); err != nil {
				return
			}
		}
	}
}

// pushChanges compares both collection watermarks against the
// per-connection high-water marks and pushes full snapshots for the ones
// that advanced. A source failure emits a terminal error event.
func (p *Publisher) pushChanges(ctx context.Context, conn *websocket.Conn, seq *int64, lastRooms, lastTasks *time.Time) error {
	roomsMark, err := p.source.Watermark(ctx, collectionRooms)
	if err != nil {
		return p.fail(ctx, conn, seq, err)
	}
	if roomsMark.After(*lastRooms) || lastRooms.IsZero() {
		rooms, err := p.source.ListRooms(ctx)
		if err != nil {
			return p.fail(ctx, conn, seq, err)
		}
		ev := newEvent(seq, EventRoomsUpdated)
		ev.Rooms = rooms
		if err := p.write(ctx, conn, ev); err != nil {
			return err
		}
		*lastRooms = roomsMark
		if lastRooms.IsZero() {
			// Unchanged store: remember that the initial push happened.
			*lastRooms = time.Unix(0, 1)
		}
	}

	tasksMark, err := p.source.Watermark(ctx, collectionTasks)
	if err != nil {
		return p.fail(ctx, conn, seq, err)
	}
	if tasksMark.After(*lastTasks) || lastTasks.IsZero() {
		tasks, err := p.source.ListTasks(ctx, "")
		if err != nil {
			return p.fail(ctx, conn, seq, err)
		}
		ev := newEvent(seq, EventTasksUpdated)
		ev.Tasks = tasks
		if err := p.write(ctx, conn, ev); err != nil {
			return err
		}
		*lastTasks = tasksMark
		if lastTasks.IsZero() {
			*lastTasks = time.Unix(0, 1)
		}
	}

	return nil
}

// fail emits an error event and reports the fault as terminal for the loop
func (p *Publisher) fail(ctx context.Context, conn *websocket.Conn, seq *int64, cause error) error {
	p.logger.Printf("[feed] source error: %v", cause)
	ev := newEvent(seq, EventError)
	ev.Message = "data source unavailable"
	_ = p.write(ctx, conn, ev)
	return cause
}

// write marshals one event and sends it as a text message
func (p *Publisher) write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, p.config.WriteTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
