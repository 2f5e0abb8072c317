package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrClosed is returned by Send after the connection has been closed.
	ErrClosed = errors.New("connection closed")

	// ErrBufferFull is returned by Send when the outgoing queue is full.
	ErrBufferFull = errors.New("send buffer full")
)

// Options tunes every socket served by Server.
type Options struct {
	// SendBuffer is the per-connection outgoing message queue depth.
	SendBuffer int

	// WriteTimeout is the deadline for a single write to a client.
	WriteTimeout time.Duration

	// PongWait is how long to wait for a pong before treating the connection
	// as dead. Pings are sent every 9/10 of PongWait.
	PongWait time.Duration

	// ReadLimit is the maximum inbound message size in bytes.
	ReadLimit int64

	// InboundRate is the sustained number of messages per second a participant
	// may send; zero disables limiting. InboundBurst is the bucket size.
	InboundRate  float64
	InboundBurst int
}

// DefaultOptions returns the production socket settings.
func DefaultOptions() Options {
	return Options{
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PongWait:     60 * time.Second,
		ReadLimit:    8 << 20,
		InboundRate:  20,
		InboundBurst: 40,
	}
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// conn is one upgraded WebSocket. It satisfies registry.Conn.
//
// Send queues onto a buffered channel drained by writePump, the only goroutine
// that writes to the socket. Close records the close frame and signals
// writePump, which flushes already queued messages before sending it.
type conn struct {
	id   string
	ws   *websocket.Conn
	opts Options
	send chan []byte

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string

	done     chan struct{} // closed by Close
	closeOne sync.Once
	finished chan struct{} // closed when writePump returns
}

func newConn(id string, wsConn *websocket.Conn, opts Options) *conn {
	return &conn{
		id:       id,
		ws:       wsConn,
		opts:     opts,
		send:     make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// Send queues msg for delivery without blocking.
func (c *conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close asks writePump to flush, send a close frame with code and reason,
// and shut the socket. Only the first call has an effect.
func (c *conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	c.closeOne.Do(func() { close(c.done) })
	return nil
}

// wait blocks until writePump has returned and the socket is closed.
func (c *conn) wait() {
	<-c.finished
}

// writePump drains the send queue to the socket and sends periodic pings.
// Runs in its own goroutine per connection.
func (c *conn) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.finished)
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.abort(err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.abort(err)
				return
			}

		case <-c.done:
			c.flush()
			c.mu.Lock()
			frame := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			c.mu.Unlock()
			c.write(websocket.CloseMessage, frame) //nolint:errcheck
			return
		}
	}
}

// flush writes whatever is still queued when the connection is closing.
func (c *conn) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)) //nolint:errcheck
	return c.ws.WriteMessage(messageType, data)
}

// abort marks the connection closed after a transport write error so later
// sends fail fast instead of filling the queue.
func (c *conn) abort(err error) {
	slog.Debug("ws: write failed", "conn", c.id, "err", err)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// readPump reads frames until the connection closes, handing every text
// message to onText. Control frames (pong, close) are processed by the
// library during ReadMessage.
func (c *conn) readPump(onText func([]byte)) {
	c.ws.SetReadLimit(c.opts.ReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait)) //nolint:errcheck
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.Debug("ws: read ended", "conn", c.id, "err", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		onText(data)
	}
}
