package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"cardroom-server/internal/protocol"
)

// wire is the transport half of a connection: an ordered sink of text
// frames plus a close. Production wraps *websocket.Conn; tests use
// in-memory fakes.
type wire interface {
	WriteFrame(ctx context.Context, data []byte) error
	CloseWith(code websocket.StatusCode, reason string) error
}

type wsWire struct {
	sock *websocket.Conn
}

func (w *wsWire) WriteFrame(ctx context.Context, data []byte) error {
	return w.sock.Write(ctx, websocket.MessageText, data)
}

func (w *wsWire) CloseWith(code websocket.StatusCode, reason string) error {
	return w.sock.Close(code, reason)
}

var nextConnectionID atomic.Uint64

const (
	outboxSize   = 32
	writeTimeout = 5 * time.Second
)

// Connection is one physical transport channel. It holds at most one
// Session; during a reconnect takeover the reference moves to the newer
// connection and this one is orphaned.
type Connection struct {
	id      uint64
	wire    wire
	session *Session

	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.SugaredLogger
}

func newConnection(w wire, logger *zap.SugaredLogger) *Connection {
	c := &Connection{
		id:     nextConnectionID.Add(1),
		wire:   w,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.writeLoop()
	return c
}

// ID returns the process-unique monotonic connection id.
func (c *Connection) ID() uint64 { return c.id }

// writeLoop drains the outbox on a single goroutine so outbound frames
// stay ordered and sends never block the event-processing path.
func (c *Connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.wire.WriteFrame(ctx, data)
			cancel()
			if err != nil {
				// Peer gone or going; the read loop tears the
				// connection down, nothing to do here.
				c.logger.Debugw("write failed", "connection", c.id, "err", err)
			}
		}
	}
}

// send queues one message, fire-and-forget. A full outbox drops the
// frame: delivery has no acknowledgement or retry, and a failed push is
// indistinguishable from a connection that is already gone.
func (c *Connection) send(msg protocol.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Errorw("marshal outbound message", "type", msg.Type, "err", err)
		return
	}
	select {
	case c.outbox <- data:
	default:
		c.logger.Warnw("outbox full, dropping frame", "connection", c.id, "type", msg.Type)
	}
}

// shutdown stops the writer and closes the transport. Safe to call more
// than once.
func (c *Connection) shutdown(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.wire.CloseWith(code, reason)
	})
}
