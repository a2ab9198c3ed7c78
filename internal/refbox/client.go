// ABOUTME: Referee-box client: one persistent TCP connection read as newline-delimited text
// ABOUTME: Runs its listener in the background and dispatches each line to a Handler

package refbox

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// DefaultAddr is where the referee box listens in the reference setup.
const DefaultAddr = "127.0.0.1:28097"

// Default client timings.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultStopTimeout = 2 * time.Second

	maxLineSize = 64 * 1024
)

// State is the client's connection state. Closed is re-enterable: Start
// begins a new session from Idle or Closed.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// Message is one line received from the referee box.
type Message struct {
	Seq      int       `json:"seq"`
	Text     string    `json:"text"`
	Received time.Time `json:"received"`
}

// Options configures a Client. Callbacks run on the listener goroutine and
// must not call Stop.
type Options struct {
	DialTimeout time.Duration
	StopTimeout time.Duration

	// Handler interprets each message. Defaults to LogHandler.
	Handler Handler

	OnStatus  func(connected bool)
	OnMessage func(text string)

	Logger *slog.Logger
}

// Client holds the single referee-box connection.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	running bool
	conn    net.Conn
	cancel  context.CancelFunc
	done    chan struct{}

	logMu    sync.RWMutex
	messages []Message
}

// New creates an idle client.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	logger := opts.Logger.With("component", "refbox")
	if opts.Handler == nil {
		opts.Handler = LogHandler{Logger: logger}
	}
	return &Client{
		opts:   opts,
		logger: logger,
	}
}

// Start launches the listener for addr and returns immediately. It reports
// false and does nothing while a session is connecting or connected.
func (c *Client) Start(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnecting || c.state == StateConnected {
		c.logger.Info("already connected to refbox", "state", c.state.String())
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.state = StateConnecting
	c.running = true
	c.cancel = cancel
	c.done = done

	go c.listen(ctx, addr, done)
	return true
}

// Stop ends the current session. The connection is closed so a blocked read
// returns at once, then Stop waits briefly for the listener to finish.
// Calling Stop again, or on an idle client, does nothing.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	conn, cancel, done := c.conn, c.cancel, c.done
	c.mu.Unlock()

	cancel()
	if conn != nil {
		_ = conn.Close()
	}

	select {
	case <-done:
	case <-time.After(c.opts.StopTimeout):
		c.logger.Warn("refbox listener did not stop in time", "timeout", c.opts.StopTimeout)
	}
	c.logger.Info("stopped refbox communication")
}

// State returns the current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the client is in StateConnected.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Done returns a channel closed when the current session's listener exits.
// It is nil before the first Start.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Messages returns a copy of every message received so far, oldest first.
func (c *Client) Messages() []Message {
	c.logMu.RLock()
	defer c.logMu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Client) listen(ctx context.Context, addr string, done chan struct{}) {
	defer close(done)

	d := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Info("refbox connect cancelled", "addr", addr)
		} else {
			c.logger.Warn("refbox connection error", "addr", addr, "error", err)
		}
		c.finish(nil)
		return
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		c.finish(conn)
		return
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("connected to refbox", "addr", addr)
	c.notifyStatus(true)

	c.read(conn)
	c.finish(conn)
}

// read frames the stream into lines until EOF, error or Stop.
func (c *Client) read(conn net.Conn) {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)

	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		c.dispatch(text)

		c.mu.Lock()
		running := c.running
		c.mu.Unlock()
		if !running {
			return
		}
	}

	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Warn("refbox connection error", "error", err)
	}
}

func (c *Client) dispatch(text string) {
	c.logMu.Lock()
	msg := Message{Seq: len(c.messages) + 1, Text: text, Received: time.Now()}
	c.messages = append(c.messages, msg)
	c.logMu.Unlock()

	if c.opts.OnMessage != nil {
		c.opts.OnMessage(text)
	}
	c.opts.Handler.HandleMessage(msg)
}

// finish moves the session to Closed and reports it.
func (c *Client) finish(conn net.Conn) {
	c.mu.Lock()
	c.state = StateClosed
	c.running = false
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	cancel()

	if conn != nil {
		_ = conn.Close()
	}
	c.logger.Info("refbox connection closed")
	c.notifyStatus(false)
}

func (c *Client) notifyStatus(connected bool) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(connected)
	}
}
