package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// sendBufferSize bounds how far a slow consumer may fall behind
	// before its messages get dropped.
	sendBufferSize = 32
)

// Client is one live websocket connection. All writes go through the
// buffered send channel and a single writePump goroutine, so one
// recipient observes a room's events in the order they were applied.
type Client struct {
	ID string

	conn *websocket.Conn

	// mu guards send's lifecycle: enqueue and shutdown take it, so a
	// broadcast racing a disconnect can never write to a closed channel.
	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// enqueue hands a marshaled message to the write pump. Returns false when
// the client is shut down or its buffer is full; the message is dropped
// rather than blocking the caller.
func (that *Client) enqueue(message []byte) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	select {
	case that.send <- message:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel, ending the write pump. Safe to call
// more than once.
func (that *Client) shutdown() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return
	}

	that.closed = true
	close(that.send)
}

// writePump drains the send channel onto the connection. It exits when
// the channel is closed and then closes the connection.
func (that *Client) writePump(logger *slog.Logger) {
	defer func() {
		_ = that.conn.Close()
	}()

	for message := range that.send {
		_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))

		if err := that.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logger.Debug("failed to write message", "connectionID", that.ID, "error", err)
			return
		}
	}

	_ = that.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = that.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
