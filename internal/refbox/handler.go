// ABOUTME: Dispatch hook for referee-box messages
// ABOUTME: Protocol interpretation plugs in here without touching the listener

package refbox

import "log/slog"

// Handler interprets one referee-box message.
type Handler interface {
	HandleMessage(msg Message)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg Message)

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(msg Message) { f(msg) }

// LogHandler only logs each message.
type LogHandler struct {
	Logger *slog.Logger
}

// HandleMessage implements Handler.
func (h LogHandler) HandleMessage(msg Message) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("refbox message", "seq", msg.Seq, "text", msg.Text)
}

// Chain calls each handler in order.
func Chain(handlers ...Handler) Handler {
	return HandlerFunc(func(msg Message) {
		for _, h := range handlers {
			if h != nil {
				h.HandleMessage(msg)
			}
		}
	})
}
