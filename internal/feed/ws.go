// ABOUTME: Websocket session: streams station events out, reads operator commands in
// ABOUTME: One writer goroutine owns the connection's write side

package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teamera/basestation/internal/events"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxCommandSize = 64 * 1024
	replyQueueSize = 16
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if !s.track() {
		closeMessage(conn, websocket.CloseGoingAway, "station shutting down")
		return
	}
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	evCh, subID := s.station.Events().Subscribe(ctx)
	logger := s.logger.With("sub_id", subID, "remote", r.RemoteAddr)
	logger.Info("display connected")
	defer logger.Info("display disconnected")

	hello := Hello{Type: "hello", World: s.station.World(), Agents: s.station.Agents()}
	if err := writeFrame(conn, hello); err != nil {
		return
	}

	out := make(chan any, replyQueueSize)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, cancel, conn, evCh, out)
	}()

	conn.SetReadLimit(maxCommandSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		reply := s.handleFrame(ctx, msg)

		select {
		case out <- reply:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-writerDone
}

// writeLoop is the only writer on conn. It ends when ctx is cancelled, the
// event subscription closes or a write fails, and always closes conn so the
// reader unblocks.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, evCh <-chan events.Event, out <-chan any) {
	defer cancel()
	defer conn.Close()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			closeMessage(conn, websocket.CloseGoingAway, "station shutting down")
			return
		case ev, ok := <-evCh:
			if !ok {
				closeMessage(conn, websocket.CloseGoingAway, "station shutting down")
				return
			}
			if err := writeFrame(conn, ev); err != nil {
				return
			}
		case v := <-out:
			if err := writeFrame(conn, v); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func closeMessage(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}
