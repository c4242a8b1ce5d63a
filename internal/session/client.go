package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"doccollab/internal/models"
)

const DefaultSendQueueSize = 256

var (
	ErrClientClosed = errors.New("client closed")
	ErrQueueFull    = errors.New("send queue full")
)

// Client is one participant's live link to one document session.
// Identity is fixed at construction; a client never moves between rooms.
type Client struct {
	ID         string
	DocumentID string
	UserID     string
	Username   string
	Conn       *websocket.Conn

	send      chan models.Frame
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	hook func(models.Frame)

	// guarded by the owning room's lock
	synced bool
}

func NewClient(conn *websocket.Conn, documentID string, who models.Participant, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Client{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     who.UserID,
		Username:   who.Username,
		Conn:       conn,
		send:       make(chan models.Frame, queueSize),
		done:       make(chan struct{}),
	}
}

func (c *Client) Participant() models.Participant {
	return models.Participant{UserID: c.UserID, Username: c.Username}
}

// SetSendHook replaces the outbound queue (used in tests).
func (c *Client) SetSendHook(fn func(models.Frame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send enqueues frame without blocking. A full queue is reported as
// ErrQueueFull and the caller is expected to drop the client.
func (c *Client) Send(frame models.Frame) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	c.mu.Lock()
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook(frame)
		return nil
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close marks the client as gone. It reports whether this call closed it.
func (c *Client) Close() bool {
	closed := false
	c.closeOnce.Do(func() {
		close(c.done)
		closed = true
	})
	return closed
}

func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// WritePump is the only writer to Conn once the client has joined. It
// drains the send queue, pings every pingPeriod (0 disables) and exits when
// the client is closed or a write fails.
func (c *Client) WritePump(writeWait, pingPeriod time.Duration) {
	var tick <-chan time.Time
	if pingPeriod > 0 {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.Conn.Close()

	for {
		select {
		case frame := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(frame); err != nil {
				c.Close()
				return
			}
		case <-tick:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
