package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccollab/internal/models"
	"doccollab/internal/utils"
)

type fakeSink struct {
	mu       sync.Mutex
	saves    map[string][]string
	comments []models.Comment
	failNext int
}

func newFakeSink() *fakeSink { return &fakeSink{saves: make(map[string][]string)} }

func (s *fakeSink) SaveContent(_ context.Context, doc, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return errors.New("store unavailable")
	}
	s.saves[doc] = append(s.saves[doc], content)
	return nil
}

func (s *fakeSink) AppendComment(_ context.Context, c models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, c)
	return nil
}

func (s *fakeSink) savesFor(doc string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saves[doc]...)
}

func (s *fakeSink) commentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments)
}

type countingMetrics struct {
	mu       sync.Mutex
	saved    int
	comments int
	failures map[string]int
}

func (m *countingMetrics) ContentSaved() { m.mu.Lock(); m.saved++; m.mu.Unlock() }
func (m *countingMetrics) CommentSaved() { m.mu.Lock(); m.comments++; m.mu.Unlock() }
func (m *countingMetrics) PersistFailed(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[kind]++
}

func TestWriterCoalescesContent(t *testing.T) {
	sink := newFakeSink()
	w := NewWriter(sink, utils.NewNopLogger(), nil, Config{FlushInterval: time.Hour})

	w.SaveContent("42", "Hello", 1)
	w.SaveContent("42", "Hello world", 2)
	w.SaveContent("7", "other", 3)
	assert.Equal(t, 2, w.Pending())

	w.Flush(context.Background())

	assert.Equal(t, []string{"Hello world"}, sink.savesFor("42"))
	assert.Equal(t, []string{"other"}, sink.savesFor("7"))
	assert.Equal(t, 0, w.Pending())
}

func TestWriterIgnoresOlderRevision(t *testing.T) {
	sink := newFakeSink()
	w := NewWriter(sink, utils.NewNopLogger(), nil, Config{FlushInterval: time.Hour})

	w.SaveContent("doc", "B", 6)
	w.SaveContent("doc", "A", 5)
	w.Flush(context.Background())
	assert.Equal(t, []string{"B"}, sink.savesFor("doc"))

	w.SaveContent("doc", "stale", 4)
	assert.Equal(t, 0, w.Pending())
	w.Flush(context.Background())
	assert.Equal(t, []string{"B"}, sink.savesFor("doc"), "a revision older than the saved one must not be written")
}

func TestWriterRequeuesFailedSave(t *testing.T) {
	sink := newFakeSink()
	sink.failNext = 1
	metrics := &countingMetrics{}
	w := NewWriter(sink, utils.NewNopLogger(), metrics, Config{FlushInterval: time.Hour})

	w.SaveContent("doc", "v1", 1)
	w.Flush(context.Background())
	assert.Empty(t, sink.savesFor("doc"))
	assert.Equal(t, 1, w.Pending())
	assert.Equal(t, 1, metrics.failures["content"])

	w.Flush(context.Background())
	assert.Equal(t, []string{"v1"}, sink.savesFor("doc"))
	assert.Equal(t, 1, metrics.saved)
}

func TestWriterKeepsNewerRevisionDuringSave(t *testing.T) {
	sink := newFakeSink()
	w := NewWriter(sink, utils.NewNopLogger(), nil, Config{FlushInterval: time.Hour})

	w.SaveContent("doc", "v1", 1)
	w.Flush(context.Background())
	w.SaveContent("doc", "v2", 2)
	assert.Equal(t, 1, w.Pending())

	w.Flush(context.Background())
	assert.Equal(t, []string{"v1", "v2"}, sink.savesFor("doc"))
	assert.Equal(t, 0, w.Pending())
}

type stubLoader map[string]string

func (s stubLoader) Load(_ context.Context, id string) (string, error) {
	content, ok := s[id]
	if !ok {
		return "", models.ErrDocumentNotFound
	}
	return content, nil
}

func TestReadThroughPrefersPendingContent(t *testing.T) {
	sink := newFakeSink()
	w := NewWriter(sink, utils.NewNopLogger(), nil, Config{FlushInterval: time.Hour})
	loader := w.ReadThrough(stubLoader{"doc": "stored", "other": "kept"})

	w.SaveContent("doc", "unflushed", 1)

	got, err := loader.Load(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, "unflushed", got)

	got, err = loader.Load(context.Background(), "other")
	require.NoError(t, err)
	assert.Equal(t, "kept", got)

	_, err = loader.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	w.Flush(context.Background())
	got, err = loader.Load(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, "stored", got, "after a flush the store is the source of truth")
}

func TestWriterWriteThroughWithoutInterval(t *testing.T) {
	sink := newFakeSink()
	w := NewWriter(sink, utils.NewNopLogger(), nil, Config{})
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop(context.Background()) })

	w.SaveContent("doc", "now", 1)

	assert.Eventually(t, func() bool { return len(sink.savesFor("doc")) == 1 }, time.Second, 10*time.Millisecond)
}

func TestWriterCronFlush(t *testing.T) {
	sink := newFakeSink()
	w := NewWriter(sink, utils.NewNopLogger(), nil, Config{FlushInterval: time.Second})
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop(context.Background()) })

	w.SaveContent("doc", "scheduled", 1)

	assert.Eventually(t, func() bool { return len(sink.savesFor("doc")) == 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestWriterAppendsComments(t *testing.T) {
	sink := newFakeSink()
	metrics := &countingMetrics{}
	w := NewWriter(sink, utils.NewNopLogger(), metrics, Config{FlushInterval: time.Hour})
	require.NoError(t, w.Start())

	for i := 0; i < 5; i++ {
		w.AppendComment(models.Comment{ID: string(rune('a' + i)), DocumentID: "doc"})
	}
	w.Stop(context.Background())

	assert.Equal(t, 5, sink.commentCount())
	assert.Equal(t, "a", sink.comments[0].ID)
	assert.Equal(t, "e", sink.comments[4].ID)
	assert.Equal(t, 5, metrics.comments)
}

func TestWriterStopFlushesPendingContent(t *testing.T) {
	sink := newFakeSink()
	w := NewWriter(sink, utils.NewNopLogger(), nil, Config{FlushInterval: time.Hour})
	require.NoError(t, w.Start())

	w.SaveContent("doc", "final", 1)
	w.Stop(context.Background())

	assert.Equal(t, []string{"final"}, sink.savesFor("doc"))
}

func TestWriterDropsCommentsWhenQueueFull(t *testing.T) {
	sink := newFakeSink()
	metrics := &countingMetrics{}
	w := NewWriter(sink, utils.NewNopLogger(), metrics, Config{FlushInterval: time.Hour, QueueSize: 1})

	w.AppendComment(models.Comment{ID: "1"})
	w.AppendComment(models.Comment{ID: "2"})

	assert.Equal(t, 1, metrics.failures["comment"])
}
