// ABOUTME: Tests for the referee-box client against a loopback TCP server
// ABOUTME: Covers line framing across writes, stop semantics and connection failures

package refbox

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects every callback the client makes.
type recorder struct {
	mu         sync.Mutex
	statuses   []bool
	logged     []string
	dispatched []string
}

func (r *recorder) options() Options {
	return Options{
		DialTimeout: time.Second,
		StopTimeout: time.Second,
		OnStatus: func(connected bool) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, connected)
		},
		OnMessage: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.logged = append(r.logged, text)
		},
		Handler: HandlerFunc(func(msg Message) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.dispatched = append(r.dispatched, msg.Text)
		}),
	}
}

func (r *recorder) snapshot() (statuses []bool, logged, dispatched []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.statuses...),
		append([]string(nil), r.logged...),
		append([]string(nil), r.dispatched...)
}

// refboxServer accepts a single connection and hands it to the test.
func refboxServer(t *testing.T) (addr string, conns <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ch <- conn
	}()
	return ln.Addr().String(), ch
}

func accept(t *testing.T, conns <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case conn := <-conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func TestClientFramesMessagesAcrossWrites(t *testing.T) {
	addr, conns := refboxServer(t)
	rec := &recorder{}
	c := New(rec.options())
	t.Cleanup(c.Stop)

	require.True(t, c.Start(addr))
	conn := accept(t, conns)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	_, err := conn.Write([]byte("STA"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = conn.Write([]byte("RT\nSTOP\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, _, dispatched := rec.snapshot()
		return len(dispatched) == 2
	}, 2*time.Second, 10*time.Millisecond)

	_, logged, dispatched := rec.snapshot()
	assert.Equal(t, []string{"START", "STOP"}, dispatched)
	assert.Equal(t, []string{"START", "STOP"}, logged)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].Seq)
	assert.Equal(t, "START", msgs[0].Text)
	assert.Equal(t, 2, msgs[1].Seq)
	assert.Equal(t, "STOP", msgs[1].Text)
}

func TestClientSkipsBlankLines(t *testing.T) {
	addr, conns := refboxServer(t)
	rec := &recorder{}
	c := New(rec.options())
	t.Cleanup(c.Stop)

	c.Start(addr)
	conn := accept(t, conns)

	_, err := conn.Write([]byte("\n  \r\n  KICKOFF_CYAN \r\n\n"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(c.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "KICKOFF_CYAN", c.Messages()[0].Text)
}

func TestClientStopWhileConnected(t *testing.T) {
	addr, conns := refboxServer(t)
	rec := &recorder{}
	c := New(rec.options())

	c.Start(addr)
	accept(t, conns)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	c.Stop()
	assert.Equal(t, StateClosed, c.State())

	c.Stop()
	statuses, _, _ := rec.snapshot()
	assert.Equal(t, []bool{true, false}, statuses)
}

func TestClientStartWhileConnectedIsNoop(t *testing.T) {
	addr, conns := refboxServer(t)
	rec := &recorder{}
	c := New(rec.options())
	t.Cleanup(c.Stop)

	require.True(t, c.Start(addr))
	accept(t, conns)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	assert.False(t, c.Start(addr))
	assert.Equal(t, StateConnected, c.State())
}

func TestClientEndOfStream(t *testing.T) {
	addr, conns := refboxServer(t)
	rec := &recorder{}
	c := New(rec.options())

	c.Start(addr)
	conn := accept(t, conns)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)

	_, err := conn.Write([]byte("HALT\nSTAGE_CHANGE"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit on EOF")
	}

	assert.Equal(t, StateClosed, c.State())
	statuses, _, dispatched := rec.snapshot()
	assert.Equal(t, []bool{true, false}, statuses)
	assert.Equal(t, []string{"HALT", "STAGE_CHANGE"}, dispatched)
}

func TestClientConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	rec := &recorder{}
	c := New(rec.options())

	require.True(t, c.Start(addr))
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit after refused connection")
	}

	assert.Equal(t, StateClosed, c.State())
	statuses, _, _ := rec.snapshot()
	assert.Equal(t, []bool{false}, statuses)
}

func TestClientRestartAfterClose(t *testing.T) {
	addr, conns := refboxServer(t)
	rec := &recorder{}
	c := New(rec.options())

	c.Start(addr)
	accept(t, conns)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
	c.Stop()

	addr2, conns2 := refboxServer(t)
	require.True(t, c.Start(addr2))
	t.Cleanup(c.Stop)
	accept(t, conns2)
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
}

func TestClientStopIdle(t *testing.T) {
	c := New(Options{})
	c.Stop()
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Done())
}

func TestChain(t *testing.T) {
	var got []string
	h := Chain(
		HandlerFunc(func(m Message) { got = append(got, "a:"+m.Text) }),
		nil,
		HandlerFunc(func(m Message) { got = append(got, "b:"+m.Text) }),
	)
	h.HandleMessage(Message{Text: "GOAL"})
	assert.Equal(t, []string{"a:GOAL", "b:GOAL"}, got)
}
