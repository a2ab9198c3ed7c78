// ABOUTME: Channel owns one agent's socket: connect, send, receive loop, disconnect.
// ABOUTME: Transport errors end the receive loop and mark the agent disconnected.

package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"
)

// ErrNotConnected is returned by Send when the agent has no open socket.
var ErrNotConnected = errors.New("agent not connected")

// Default channel timings.
const (
	DefaultConnectTimeout = 2 * time.Second
	DefaultJoinTimeout    = 2 * time.Second
	DefaultWriteTimeout   = time.Second

	maxPayloadSize = 64 * 1024
)

// StatusFunc is called whenever an agent's channel opens or closes.
type StatusFunc func(agentID int, connected bool)

// DialFunc opens a socket. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ChannelOptions configures a Channel. Zero values get defaults.
type ChannelOptions struct {
	ConnectTimeout time.Duration
	JoinTimeout    time.Duration
	WriteTimeout   time.Duration
	Dial           DialFunc
	Decoder        Decoder
	OnStatus       StatusFunc
	Logger         *slog.Logger
}

func (o ChannelOptions) withDefaults() ChannelOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Dial == nil {
		var d net.Dialer
		o.Dial = d.DialContext
	}
	if o.Decoder == nil {
		o.Decoder = RawDecoder{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Channel is the network link to a single agent. At most one socket and one
// receive loop exist at a time.
type Channel struct {
	agent *Agent
	opts  ChannelOptions

	mu      sync.Mutex
	conn    net.Conn
	done    chan struct{} // closed when the current receive loop has exited
	pending *dialAttempt  // in-flight dial, cancelled by Disconnect

	logger *slog.Logger
}

// NewChannel creates a disconnected channel for a.
func NewChannel(a *Agent, opts ChannelOptions) *Channel {
	opts = opts.withDefaults()
	return &Channel{
		agent: a,
		opts:  opts,
		logger: opts.Logger.With(
			"agent_id", a.ID,
			"agent", a.Name,
		),
	}
}

// Agent returns the agent this channel belongs to.
func (c *Channel) Agent() *Agent {
	return c.agent
}

// Connect opens the agent's socket and starts its receive loop. Agents
// without an address stay disconnected and Connect returns nil. Connecting
// an already connected channel is a no-op.
func (c *Channel) Connect(ctx context.Context) error {
	conn, done, err := c.dial(ctx)
	if err != nil || conn == nil {
		return err
	}
	c.notify(true)
	go c.receiveLoop(conn, done)
	return nil
}

type dialAttempt struct {
	cancel context.CancelFunc
}

// dial opens the socket without holding c.mu, so Send and Disconnect stay
// responsive while it runs. It returns a nil conn when there is nothing to do.
func (c *Channel) dial(ctx context.Context) (net.Conn, chan struct{}, error) {
	c.mu.Lock()
	if c.conn != nil || c.pending != nil {
		c.mu.Unlock()
		return nil, nil, nil
	}

	addr, ok := c.agent.Endpoint()
	if !ok {
		c.mu.Unlock()
		c.logger.Info("no address configured, agent stays inactive")
		return nil, nil, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()
	attempt := &dialAttempt{cancel: cancel}
	c.pending = attempt
	c.agent.setState(StateConnecting)
	c.mu.Unlock()

	conn, err := c.opts.Dial(dialCtx, c.agent.Network, addr)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Disconnect clears pending; a newer attempt may have replaced it since.
	aborted := c.pending != attempt
	if !aborted {
		c.pending = nil
	}
	if err == nil && aborted {
		_ = conn.Close()
		err = context.Canceled
	}
	if err != nil {
		if c.pending == nil && c.conn == nil {
			c.agent.setState(StateDisconnected)
		}
		c.logger.Warn("failed to connect", "addr", addr, "network", c.agent.Network, "error", err)
		return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	done := make(chan struct{})
	c.conn = conn
	c.done = done
	c.agent.setState(StateConnected)
	c.logger.Info("connected", "addr", addr, "network", c.agent.Network)
	return conn, done, nil
}

// Disconnect aborts an in-flight dial, closes the socket and waits, up to
// the join timeout, for the receive loop to exit. It is a no-op on a
// disconnected channel.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
		if c.conn == nil {
			c.agent.setState(StateDisconnected)
		}
	}
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}

	_ = conn.Close()

	select {
	case <-done:
	case <-time.After(c.opts.JoinTimeout):
		c.logger.Warn("receive loop did not stop in time", "timeout", c.opts.JoinTimeout)
		c.mu.Lock()
		if c.conn == nil {
			c.agent.setState(StateDisconnected)
		}
		c.mu.Unlock()
	}
}

// Done returns a channel closed when the current receive loop exits, or nil
// if the channel was never connected.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Send transmits a text command to the agent. Stream sockets get a trailing
// newline so the agent can frame commands.
func (c *Channel) Send(msg string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Warn("socket not connected, dropping command", "command", msg)
		return fmt.Errorf("%s: %w", c.agent.Name, ErrNotConnected)
	}

	payload := []byte(msg)
	if c.agent.Network != "udp" {
		payload = append(payload, '\n')
	}

	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if _, err := conn.Write(payload); err != nil {
		c.logger.Warn("failed to send", "command", msg, "error", err)
		return fmt.Errorf("sending to %s: %w", c.agent.Name, err)
	}

	c.logger.Debug("sent", "command", msg)
	return nil
}

// receiveLoop reads payloads until the socket is closed or fails. Decoded
// updates are applied under the agent's lock. Whatever ends the loop, the
// observation fields keep their last values. A refused datagram only means
// nothing listened on the robot's port at that moment, so UDP keeps reading.
func (c *Channel) receiveLoop(conn net.Conn, done chan struct{}) {
	defer close(done)
	defer c.teardown(conn)

	buf := make([]byte, maxPayloadSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if c.agent.Network == "udp" && errors.Is(err, syscall.ECONNREFUSED) {
				c.logger.Debug("datagram refused by peer", "error", err)
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				c.logger.Debug("receive loop stopped")
			} else {
				c.logger.Warn("error receiving data", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}

		payload := buf[:n]
		c.logger.Debug("received data", "bytes", n, "payload", string(payload))

		var decodeErr error
		c.agent.Update(func(obs *Observation) {
			decodeErr = c.opts.Decoder.Decode(payload, obs)
		})
		if decodeErr != nil {
			c.logger.Warn("dropping undecodable payload", "error", decodeErr)
		}
	}
}

// teardown releases the socket after the receive loop ends. A concurrent
// Connect may already own a newer socket, which is left alone.
func (c *Channel) teardown(conn net.Conn) {
	c.mu.Lock()
	superseded := c.conn != nil && c.conn != conn
	if !superseded {
		c.conn = nil
		c.agent.setState(StateDisconnected)
	}
	c.mu.Unlock()

	_ = conn.Close()
	if superseded {
		return
	}
	c.logger.Info("disconnected")
	c.notify(false)
}

func (c *Channel) notify(connected bool) {
	if c.opts.OnStatus != nil {
		c.opts.OnStatus(c.agent.ID, connected)
	}
}
