package ws_server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"robobridge/shared"
)

var errClientSendBufferFull = errors.New("ws_server: client send buffer full")
var errClientClosed = errors.New("ws_server: client closed")

// sendBufferSize bounds a client's outbound queue; gorilla/websocket
// forbids concurrent writers on one connection, so every send funnels
// through this channel into a single writePump goroutine.
const sendBufferSize = 256

const writeWait = 10 * time.Second

// client is one connected UI WebSocket, satisfying subscription.Client.
//
// send is never closed: a concurrent Broadcast/Publish goroutine may still
// hold a reference to this client after ServeHTTP decides to tear it down,
// and sending on a closed channel panics. Shutdown is instead signalled
// through done, which Send and writePump both select on, so a send that
// loses the race with teardown is simply dropped rather than crashing the
// process.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send queues payload for delivery on this client's writePump. A full
// queue, or a client already torn down, is treated as dead so the
// subscription router drops it at the end of the broadcast whose send failed.
func (c *client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errClientClosed
	default:
		return errClientSendBufferFull
	}
}

// close signals writePump to stop and closes the underlying connection.
// Safe to call more than once or concurrently with Send.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		shared.SafeClose(c.conn)
	})
}

func (c *client) writePump() {
	defer c.close()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				shared.DebugError(err)
				return
			}
		case <-c.done:
			return
		}
	}
}
