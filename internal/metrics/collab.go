package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"doccollab/internal/models"
)

// Collab counts session activity and persistence outcomes. It satisfies
// both session.Observer and persist.Metrics.
type Collab struct {
	sessions       prometheus.Gauge
	sessionsOpened prometheus.Counter
	participants   prometheus.Gauge
	messages       *prometheus.CounterVec
	violations     *prometheus.CounterVec
	sendFailures   prometheus.Counter
	contentSaves   prometheus.Counter
	commentSaves   prometheus.Counter
	persistErrors  *prometheus.CounterVec
}

// NewCollab registers the collaboration metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them through Handler.
func NewCollab(reg prometheus.Registerer) *Collab {
	f := promauto.With(reg)
	return &Collab{
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Documents with at least one connected participant",
		}),
		sessionsOpened: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Editing sessions created",
		}),
		participants: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_participants",
			Help:      "Participants currently joined to a session",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Valid inbound messages, by type",
		}, []string{"type"}),
		violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Rejected inbound frames, by error code",
		}, []string{"code"}),
		sendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Participants dropped because their outbound queue was full",
		}),
		contentSaves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "content_saves_total",
			Help:      "Document content writes to the store",
		}),
		commentSaves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comment_saves_total",
			Help:      "Comments appended to the store",
		}),
		persistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed or dropped store writes, by kind",
		}, []string{"kind"}),
	}
}

func (c *Collab) SessionOpened() {
	c.sessions.Inc()
	c.sessionsOpened.Inc()
}

func (c *Collab) SessionClosed()     { c.sessions.Dec() }
func (c *Collab) ParticipantJoined() { c.participants.Inc() }
func (c *Collab) ParticipantLeft()   { c.participants.Dec() }
func (c *Collab) SendFailed()        { c.sendFailures.Inc() }

func (c *Collab) MessageReceived(t models.MessageType) {
	c.messages.WithLabelValues(string(t)).Inc()
}

func (c *Collab) ProtocolViolation(code string) {
	c.violations.WithLabelValues(code).Inc()
}

func (c *Collab) ContentSaved() { c.contentSaves.Inc() }
func (c *Collab) CommentSaved() { c.commentSaves.Inc() }

func (c *Collab) PersistFailed(kind string) {
	c.persistErrors.WithLabelValues(kind).Inc()
}
