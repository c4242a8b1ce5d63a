package session

import (
	"sync"
	"sync/atomic"
	"time"

	"doccollab/internal/models"
)

type ContentState int

const (
	StateEmpty ContentState = iota
	StateLoaded
)

func (s ContentState) String() string {
	if s == StateLoaded {
		return "loaded"
	}
	return "empty"
}

// revisions are process-wide so a recreated room never reuses a number
// still queued for persistence by its predecessor.
var revisionSeq atomic.Uint64

// Room holds the live content, comment stream and connections of one document.
type Room struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	clients  []*Client
	content  string
	state    ContentState
	revision uint64
	comments []models.Comment
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		clients:   make([]*Client, 0, 4),
		state:     StateEmpty,
	}
}

// add and remove are only called by the hub while it holds its own lock.
func (r *Room) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, c)
}

func (r *Room) remove(c *Client) (remaining int, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.clients {
		if existing == c {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return len(r.clients), true
		}
	}
	return len(r.clients), false
}

func (r *Room) GetClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Room) Roster() []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Roster(r.clients)
}

func (r *Room) Snapshot() (string, ContentState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.content, r.state
}

func (r *Room) Comments() []models.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Comment, len(r.comments))
	copy(out, r.comments)
	return out
}

func (r *Room) Info() models.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.SessionInfo{
		DocumentID:   r.ID,
		State:        r.state.String(),
		ContentBytes: len(r.content),
		Comments:     len(r.comments),
		Participants: Roster(r.clients),
	}
}

// Hydrate installs initially loaded content. It only applies while the room
// is still Empty: a content-update that arrived first wins. On success every
// member receives a snapshot.
func (r *Room) Hydrate(content string) (applied bool, failed []*Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateEmpty {
		return false, nil
	}
	r.content = content
	r.state = StateLoaded
	frame := models.SnapshotFrame(r.content, r.commentsLocked())
	for _, c := range r.clients {
		c.synced = true
		if err := c.Send(frame); err != nil {
			failed = append(failed, c)
		}
	}
	return true, failed
}

// SendSnapshot gives c the current content once, if any is loaded.
func (r *Room) SendSnapshot(c *Client) (sent bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateLoaded || c.synced {
		return false, nil
	}
	c.synced = true
	if err := c.Send(models.SnapshotFrame(r.content, r.commentsLocked())); err != nil {
		return false, err
	}
	return true, nil
}

// ApplyContent replaces the content verbatim (last write wins) and fans it
// out to every member except sender. Fan-out happens under the lock so all
// recipients see updates in the order they were applied. A sender that is
// no longer a live member changes nothing and ok is false. record, if set,
// runs under the lock with the new revision; it must not block.
func (r *Room) ApplyContent(sender *Client, content string, record func(revision uint64)) (revision uint64, failed []*Client, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.acceptsLocked(sender) {
		return 0, nil, false
	}
	r.content = content
	r.state = StateLoaded
	r.revision = revisionSeq.Add(1)
	if sender != nil {
		sender.synced = true
	}
	if record != nil {
		record(r.revision)
	}
	return r.revision, r.broadcastLocked(sender, models.ContentBroadcastFrame(content)), true
}

// AppendComment stamps c with at, appends it to the stream and relays it to
// every other member. Timestamps are strictly increasing within a room so
// stream order and CreatedAt order agree. record, if set, runs under the
// lock and sees comments in stream order; it must not block.
func (r *Room) AppendComment(sender *Client, c models.Comment, at time.Time, record func(models.Comment)) (stored models.Comment, failed []*Client, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.acceptsLocked(sender) {
		return models.Comment{}, nil, false
	}
	if n := len(r.comments); n > 0 {
		if last := r.comments[n-1].CreatedAt; !at.After(last) {
			at = last.Add(time.Microsecond)
		}
	}
	c.CreatedAt = at
	r.comments = append(r.comments, c)
	if record != nil {
		record(c)
	}
	return c, r.broadcastLocked(sender, models.CommentBroadcastFrame(c)), true
}

// closeAll closes every member under the room lock, so no update is
// accepted afterwards.
func (r *Room) closeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	closed := 0
	for _, c := range r.clients {
		if c.Close() {
			closed++
		}
	}
	return closed
}

// acceptsLocked reports whether sender may change the room. A nil sender is
// the room itself.
func (r *Room) acceptsLocked(sender *Client) bool {
	if sender == nil {
		return true
	}
	if sender.Closed() {
		return false
	}
	for _, c := range r.clients {
		if c == sender {
			return true
		}
	}
	return false
}

// BroadcastPresence sends the full roster to every member, sender included.
func (r *Room) BroadcastPresence() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(nil, models.PresenceFrame(Roster(r.clients)))
}

func (r *Room) Broadcast(sender *Client, frame models.Frame) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(sender, frame)
}

func (r *Room) BroadcastAll(frame models.Frame) []*Client {
	return r.Broadcast(nil, frame)
}

// broadcastLocked never blocks; recipients whose send fails are returned
// so the caller can run the leave path for them after unlocking.
func (r *Room) broadcastLocked(sender *Client, frame models.Frame) []*Client {
	var failed []*Client
	for _, c := range r.clients {
		if c == sender {
			continue
		}
		if err := c.Send(frame); err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

func (r *Room) commentsLocked() []models.Comment {
	out := make([]models.Comment, len(r.comments))
	copy(out, r.comments)
	return out
}
