package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"doccollab/internal/models"
	"doccollab/internal/utils"
)

// DocumentLoader fetches the persisted content of a document. A loader
// that does not know the document returns models.ErrDocumentNotFound.
type DocumentLoader interface {
	Load(ctx context.Context, documentID string) (string, error)
}

// Persister receives accepted updates in the order the room applied them.
// Both calls run under the room lock and must not block on I/O.
type Persister interface {
	SaveContent(documentID, content string, revision uint64)
	AppendComment(c models.Comment)
}

// LifecyclePublisher announces sessions that closed.
type LifecyclePublisher interface {
	PublishSessionClosed(ctx context.Context, ev models.SessionClosedEvent) error
}

// Observer receives collaboration counters.
type Observer interface {
	SessionOpened()
	SessionClosed()
	ParticipantJoined()
	ParticipantLeft()
	MessageReceived(t models.MessageType)
	ProtocolViolation(code string)
	SendFailed()
}

type Options struct {
	Loader      DocumentLoader
	Persister   Persister
	Publisher   LifecyclePublisher
	Observer    Observer
	LoadTimeout time.Duration
	InstanceID  string
	Now         func() time.Time
}

// Router runs the join/leave protocol and dispatches inbound messages.
type Router struct {
	hub  *Hub
	log  *utils.Logger
	opts Options
}

func NewRouter(hub *Hub, log *utils.Logger, opts Options) *Router {
	if opts.Persister == nil {
		opts.Persister = nopPersister{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 5 * time.Second
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Router{hub: hub, log: log, opts: opts}
}

func (r *Router) Hub() *Hub { return r.hub }

// Join registers c and broadcasts the new roster to every member, c
// included. The first joiner of a document hydrates the room from the
// loader; later joiners get a snapshot of whatever is loaded.
func (r *Router) Join(ctx context.Context, c *Client) error {
	room, created, err := r.hub.Join(c)
	if err != nil {
		return err
	}
	r.opts.Observer.ParticipantJoined()
	if created {
		r.opts.Observer.SessionOpened()
	}
	r.log.Info("participant joined",
		"documentId", c.DocumentID, "connectionId", c.ID, "userId", c.UserID, "newSession", created)

	failed := room.BroadcastPresence()

	if created {
		failed = append(failed, r.hydrate(ctx, room)...)
	} else if _, err := room.SendSnapshot(c); err != nil {
		failed = append(failed, c)
	}

	r.evict(failed)
	return nil
}

func (r *Router) hydrate(ctx context.Context, room *Room) []*Client {
	if r.opts.Loader == nil {
		_, failed := room.Hydrate("")
		return failed
	}

	loadCtx, cancel := context.WithTimeout(ctx, r.opts.LoadTimeout)
	defer cancel()
	content, err := r.opts.Loader.Load(loadCtx, room.ID)
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		content = ""
	case err != nil:
		// room stays Empty until the first content-update
		r.log.Error("document load failed", "documentId", room.ID, "error", err.Error())
		return nil
	}

	applied, failed := room.Hydrate(content)
	if !applied {
		r.log.Info("initial load superseded by live update", "documentId", room.ID)
	}
	return failed
}

// Leave deregisters c. The last participant out removes the room and its
// in-memory content; otherwise the remaining members get the new roster.
func (r *Router) Leave(c *Client) {
	c.Close()
	room, remaining, ok := r.hub.Leave(c)
	if !ok {
		return
	}
	r.opts.Observer.ParticipantLeft()
	r.log.Info("participant left",
		"documentId", c.DocumentID, "connectionId", c.ID, "userId", c.UserID, "remaining", remaining)

	if remaining > 0 {
		r.evict(room.BroadcastPresence())
		return
	}

	r.opts.Observer.SessionClosed()
	r.log.Info("session closed", "documentId", room.ID)

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.LoadTimeout)
	defer cancel()
	ev := models.SessionClosedEvent{
		DocumentID: room.ID,
		InstanceID: r.opts.InstanceID,
		Comments:   len(room.Comments()),
		OpenedAt:   room.CreatedAt.UTC(),
		ClosedAt:   r.opts.Now().UTC(),
	}
	if err := r.opts.Publisher.PublishSessionClosed(ctx, ev); err != nil {
		r.log.Warn("publish session closed failed", "documentId", room.ID, "error", err.Error())
	}
}

// HandleRaw decodes one frame from c and dispatches it. Protocol errors are
// logged and reported back to c only; the connection stays open.
func (r *Router) HandleRaw(c *Client, data []byte) {
	if c.Closed() {
		return
	}
	msg, err := models.Decode(data)
	if err != nil {
		pe, ok := models.AsProtocolError(err)
		if !ok {
			pe = &models.ProtocolError{Code: models.CodeMalformedEnvelope, Message: err.Error()}
		}
		r.violation(c, pe)
		return
	}
	r.Handle(c, msg)
}

// Handle applies msg from c. Messages from a handle that already left are
// dropped, even if a new session for the same document exists.
func (r *Router) Handle(c *Client, msg models.Inbound) {
	if c.Closed() {
		return
	}
	room, ok := r.hub.Get(c.DocumentID)
	if !ok {
		return
	}
	r.opts.Observer.MessageReceived(msg.Type())

	var failed []*Client
	switch m := msg.(type) {
	case models.ContentUpdate:
		_, sent, ok := room.ApplyContent(c, m.Content, func(rev uint64) {
			r.opts.Persister.SaveContent(c.DocumentID, m.Content, rev)
		})
		if !ok {
			r.log.Debug("dropping update from departed participant", "documentId", c.DocumentID, "connectionId", c.ID)
			return
		}
		failed = sent

	case models.CommentNew:
		comment := models.Comment{
			ID:             uuid.NewString(),
			DocumentID:     c.DocumentID,
			Text:           m.Text,
			SelectionStart: m.SelectionStart,
			SelectionEnd:   m.SelectionEnd,
			UserID:         c.UserID,
			Username:       c.Username,
		}
		_, sent, ok := room.AppendComment(c, comment, r.opts.Now().UTC(), r.opts.Persister.AppendComment)
		if !ok {
			r.log.Debug("dropping comment from departed participant", "documentId", c.DocumentID, "connectionId", c.ID)
			return
		}
		failed = sent

	case models.UserJoin:
		r.violation(c, &models.ProtocolError{Code: models.CodeDuplicateJoin, Message: "connection already joined"})
	}

	r.evict(failed)
}

func (r *Router) violation(c *Client, pe *models.ProtocolError) {
	r.opts.Observer.ProtocolViolation(pe.Code)
	r.log.Warn("protocol violation",
		"documentId", c.DocumentID, "connectionId", c.ID, "code", pe.Code, "error", pe.Message)
	if err := c.Send(models.ErrorFrame(pe)); err != nil {
		r.evict([]*Client{c})
	}
}

// evict runs the leave path for recipients whose queue overflowed or
// whose transport is gone. Must be called without any room lock held.
func (r *Router) evict(failed []*Client) {
	for _, c := range failed {
		if c.Closed() {
			r.Leave(c)
			continue
		}
		r.opts.Observer.SendFailed()
		r.log.Warn("dropping unresponsive participant",
			"documentId", c.DocumentID, "connectionId", c.ID, "userId", c.UserID)
		r.Leave(c)
	}
}

type nopPersister struct{}

func (nopPersister) SaveContent(string, string, uint64) {}
func (nopPersister) AppendComment(models.Comment)       {}

type nopPublisher struct{}

func (nopPublisher) PublishSessionClosed(context.Context, models.SessionClosedEvent) error {
	return nil
}

type nopObserver struct{}

func (nopObserver) SessionOpened()                     {}
func (nopObserver) SessionClosed()                     {}
func (nopObserver) ParticipantJoined()                 {}
func (nopObserver) ParticipantLeft()                   {}
func (nopObserver) MessageReceived(models.MessageType) {}
func (nopObserver) ProtocolViolation(string)           {}
func (nopObserver) SendFailed()                        {}
