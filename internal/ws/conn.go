package ws

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

const (
	sendBuffer = 256
	pingPeriod = 20 * time.Second
)

// Conn binds one accepted websocket to the identity it authenticated
// as. The user id is fixed at handshake; the lifecycle manager owns the
// underlying transport.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	out    chan []byte
}

// Accept upgrades HTTP to websocket (allow all origins)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

func NewConn(id, userID string, ws *websocket.Conn) *Conn {
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		out:    make(chan []byte, sendBuffer),
	}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// Send enqueues an outbound frame without blocking. A full buffer means
// the peer is not draining; the frame is dropped and false returned.
func (c *Conn) Send(data []byte) bool {
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

// ReadFrame blocks until the next text/binary frame arrives. Returns
// false once the transport is closed or errored.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// WriteLoop drains the send queue and pings the peer periodically.
// Exits when ctx is cancelled.
func (c *Conn) WriteLoop(ctx context.Context) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			_ = c.ws.Write(ctx, websocket.MessageText, b)
		case <-t.C:
			_ = c.ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the websocket with a normal-closure status.
func (c *Conn) Close() error { return c.ws.Close(websocket.StatusNormalClosure, "bye") }
