// Package persist writes accepted session updates to the document store
// without putting store I/O on the broadcast path.
package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"doccollab/internal/models"
	"doccollab/internal/utils"
)

// Sink is the subset of the document store the writer needs.
type Sink interface {
	SaveContent(ctx context.Context, documentID, content string) error
	AppendComment(ctx context.Context, c models.Comment) error
}

// Metrics receives persistence outcomes.
type Metrics interface {
	ContentSaved()
	CommentSaved()
	PersistFailed(kind string)
}

type Config struct {
	// FlushInterval coalesces content saves; zero writes through on every
	// update. cron rounds intervals below one second up to one second.
	FlushInterval time.Duration
	QueueSize     int
	WriteTimeout  time.Duration
}

type pendingContent struct {
	content  string
	revision uint64
}

// Writer keeps the latest content per document (last write wins, by
// revision) and flushes it on a cron schedule. Comments are appended in
// arrival order by a single worker.
type Writer struct {
	sink    Sink
	log     *utils.Logger
	metrics Metrics
	cfg     Config

	flushMu sync.Mutex
	mu      sync.Mutex
	pending map[string]pendingContent
	// highest revision written per document; updates can reach the writer
	// slightly out of revision order
	saved map[string]uint64

	comments chan models.Comment
	kick     chan struct{}
	cron     *cron.Cron
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewWriter(sink Sink, log *utils.Logger, m Metrics, cfg Config) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if m == nil {
		m = nopMetrics{}
	}
	return &Writer{
		sink:     sink,
		log:      log,
		metrics:  m,
		cfg:      cfg,
		pending:  make(map[string]pendingContent),
		saved:    make(map[string]uint64),
		comments: make(chan models.Comment, cfg.QueueSize),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start schedules the flush job and the comment worker.
func (w *Writer) Start() error {
	if w.cfg.FlushInterval > 0 {
		w.cron = cron.New()
		schedule := fmt.Sprintf("@every %s", w.cfg.FlushInterval)
		if _, err := w.cron.AddFunc(schedule, func() { w.Flush(context.Background()) }); err != nil {
			return fmt.Errorf("schedule content flush: %w", err)
		}
		w.cron.Start()
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop halts scheduling, drains queued comments and flushes pending content.
func (w *Writer) Stop(ctx context.Context) {
	if w.cron != nil {
		select {
		case <-w.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	close(w.stop)
	w.wg.Wait()
	w.Flush(ctx)
}

func (w *Writer) SaveContent(documentID, content string, revision uint64) {
	w.mu.Lock()
	if revision <= w.saved[documentID] {
		w.mu.Unlock()
		return
	}
	if cur, ok := w.pending[documentID]; !ok || revision > cur.revision {
		w.pending[documentID] = pendingContent{content: content, revision: revision}
	}
	w.mu.Unlock()

	if w.cfg.FlushInterval == 0 {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

func (w *Writer) AppendComment(c models.Comment) {
	select {
	case w.comments <- c:
	default:
		w.metrics.PersistFailed("comment")
		w.log.Error("comment persistence queue full, dropping", "documentId", c.DocumentID, "commentId", c.ID)
	}
}

// Pending reports how many documents have unsaved content.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush writes the newest pending content of every document. Entries stay
// pending until saved, so a failed save is retried on the next flush.
func (w *Writer) Flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := make(map[string]pendingContent, len(w.pending))
	for docID, p := range w.pending {
		batch[docID] = p
	}
	w.mu.Unlock()

	for docID, p := range batch {
		saveCtx, cancel := context.WithTimeout(ctx, w.cfg.WriteTimeout)
		err := w.sink.SaveContent(saveCtx, docID, p.content)
		cancel()

		if err != nil {
			w.metrics.PersistFailed("content")
			w.log.Error("content save failed", "documentId", docID, "revision", p.revision, "error", err.Error())
			continue
		}

		w.mu.Lock()
		if p.revision > w.saved[docID] {
			w.saved[docID] = p.revision
		}
		if cur, ok := w.pending[docID]; ok && cur.revision <= p.revision {
			delete(w.pending, docID)
		}
		w.mu.Unlock()
		w.metrics.ContentSaved()
	}
}

// Loader is the read side of the document store.
type Loader interface {
	Load(ctx context.Context, documentID string) (string, error)
}

// ReadThrough returns a Loader that serves content still waiting to be
// flushed before asking next. A session reopened right after its last
// participant left then starts from the latest content.
func (w *Writer) ReadThrough(next Loader) Loader {
	return readThrough{w: w, next: next}
}

type readThrough struct {
	w    *Writer
	next Loader
}

func (r readThrough) Load(ctx context.Context, documentID string) (string, error) {
	r.w.mu.Lock()
	p, ok := r.w.pending[documentID]
	r.w.mu.Unlock()
	if ok {
		return p.content, nil
	}
	return r.next.Load(ctx, documentID)
}

func (w *Writer) run() {
	defer w.wg.Done()
	for {
		select {
		case c := <-w.comments:
			w.writeComment(c)
		case <-w.kick:
			w.Flush(context.Background())
		case <-w.stop:
			for {
				select {
				case c := <-w.comments:
					w.writeComment(c)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) writeComment(c models.Comment) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()
	if err := w.sink.AppendComment(ctx, c); err != nil {
		w.metrics.PersistFailed("comment")
		w.log.Error("comment append failed", "documentId", c.DocumentID, "commentId", c.ID, "error", err.Error())
		return
	}
	w.metrics.CommentSaved()
}

type nopMetrics struct{}

func (nopMetrics) ContentSaved()        {}
func (nopMetrics) CommentSaved()        {}
func (nopMetrics) PersistFailed(string) {}
