package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// State describes a feed client's connection lifecycle
type State int32

const (
	// StateConnecting means no connection is established yet, or a
	// reconnect attempt is in progress
	StateConnecting State = iota

	// StateOpen means a connection is live and events are flowing
	StateOpen

	// StateClosed means the client gave up or was disconnected explicitly
	StateClosed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ClientConfig holds feed client configuration
type ClientConfig struct {
	// MaxAttempts is the number of consecutive failed connection attempts
	// tolerated before the client gives up (default: 5)
	MaxAttempts int

	// BaseDelay is the wait before the first reconnect attempt; it doubles
	// per consecutive failure (default: 2s)
	BaseDelay time.Duration

	// MaxDelay caps the reconnect backoff (default: 30s)
	MaxDelay time.Duration

	// Logger for connection activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Logger:      log.Default(),
	}
}

// Client maintains a feed connection, reconnecting with exponential backoff
// when it drops. Received events are delivered on the Events channel, which
// closes once the client reaches StateClosed.
type Client struct {
	url    string
	config *ClientConfig
	logger *log.Logger

	events chan Event
	state  atomic.Int32

	mu       sync.Mutex
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	conn     *websocket.Conn

	done chan struct{}
}

// NewClient creates a feed client for the given websocket URL
func NewClient(url string, config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 2 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	c := &Client{
		url:    url,
		config: config,
		logger: config.Logger,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Connect starts the connection loop. It returns immediately; observe
// Events and State for progress.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("feed client already started")
	}
	if c.stopped {
		return fmt.Errorf("feed client is closed")
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(runCtx)
	return nil
}

// Disconnect stops the client permanently. It never triggers a reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	started := c.started
	c.mu.Unlock()

	if started {
		<-c.done
	} else {
		c.state.Store(int32(StateClosed))
		close(c.events)
		close(c.done)
	}
}

// Events returns the channel feed events are delivered on. It closes when
// the client reaches StateClosed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// State reports the current connection state
func (c *Client) State() State {
	return State(c.state.Load())
}

// run is the connection loop: dial, read until failure, back off, retry.
// A successful connection resets the attempt counter.
func (c *Client) run(ctx context.Context) {
	defer func() {
		c.state.Store(int32(StateClosed))
		close(c.events)
		close(c.done)
	}()

	attempts := 0
	for {
		c.state.Store(int32(StateConnecting))

		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			if c.closing(ctx) {
				return
			}
			attempts++
			c.logger.Printf("[feed] connect attempt %d/%d failed: %v", attempts, c.config.MaxAttempts, err)
			if attempts >= c.config.MaxAttempts {
				c.logger.Printf("[feed] giving up after %d attempts", attempts)
				c.giveUp(attempts)
				return
			}
			if !c.sleep(ctx, c.backoff(attempts)) {
				return
			}
			continue
		}

		// Feed snapshots can be large.
		conn.SetReadLimit(8 << 20)

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.state.Store(int32(StateOpen))
		attempts = 0

		err = c.readLoop(ctx, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		if c.closing(ctx) {
			return
		}
		attempts++
		c.logger.Printf("[feed] connection lost: %v", err)
		if attempts >= c.config.MaxAttempts {
			c.logger.Printf("[feed] giving up after %d attempts", attempts)
			c.giveUp(attempts)
			return
		}
		if !c.sleep(ctx, c.backoff(attempts)) {
			return
		}
	}
}

// giveUp emits a terminal error event so consumers learn the reconnect
// budget is exhausted before the Events channel closes. If the buffer is
// full the oldest event is dropped to make room.
func (c *Client) giveUp(attempts int) {
	ev := Event{
		Type:      EventError,
		Message:   fmt.Sprintf("gave up after %d failed connection attempts", attempts),
		Timestamp: time.Now().Unix(),
	}
	select {
	case c.events <- ev:
	default:
		select {
		case <-c.events:
		default:
		}
		select {
		case c.events <- ev:
		default:
		}
	}
}

// readLoop delivers incoming events until the connection fails
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Printf("[feed] dropping malformed event: %v", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Receiver is not keeping up. Drop the oldest buffered event
			// so the channel always holds the freshest snapshots.
			select {
			case <-c.events:
			default:
			}
			select {
			case c.events <- ev:
			default:
			}
		}
	}
}

// backoff returns the delay before the given (1-based) retry attempt
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.config.MaxDelay {
			return c.config.MaxDelay
		}
	}
	if d > c.config.MaxDelay {
		return c.config.MaxDelay
	}
	return d
}

// sleep waits for d unless the client shuts down first
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// closing reports whether shutdown was requested
func (c *Client) closing(ctx context.Context) bool {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	return stopped || ctx.Err() != nil
}
