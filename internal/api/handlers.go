package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"doccollab/internal/config"
	"doccollab/internal/models"
	"doccollab/internal/session"
	"doccollab/internal/utils"
)

// CommentLister reads the persisted comment stream of a document.
type CommentLister interface {
	ListComments(ctx context.Context, documentID string) ([]models.Comment, error)
}

type Handlers struct {
	log      *utils.Logger
	router   *session.Router
	cfg      *config.Config
	comments CommentLister
	upgrader websocket.Upgrader
}

func NewHandlers(log *utils.Logger, router *session.Router, cfg *config.Config) *Handlers {
	h := &Handlers{log: log, router: router, cfg: cfg}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// WithCommentHistory enables the persisted comment endpoint.
func (h *Handlers) WithCommentHistory(l CommentLister) *Handlers {
	h.comments = l
	return h
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// SessionInfo reports the live roster and content state of a document.
func (h *Handlers) SessionInfo(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	info, ok := h.router.Hub().Info(docID)
	if !ok {
		writeError(w, http.StatusNotFound, "no live session for document")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ListComments returns the persisted comments of a document, oldest first.
func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	if h.comments == nil {
		writeError(w, http.StatusNotImplemented, "comment history not configured")
		return
	}
	docID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	comments, err := h.comments.ListComments(ctx, docID)
	if err != nil {
		h.log.Error("list comments failed", "documentId", docID, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load comments")
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// identity resolves the token-based identity when auth is enforced. A nil
// claims value with a zero status means the join payload is trusted.
func (h *Handlers) identity(r *http.Request, docID string) (*utils.DocumentTokenClaims, int, error) {
	if !h.cfg.AuthRequired || h.cfg.JWTSecret == "" {
		return nil, 0, nil
	}
	token := utils.TokenFromRequest(r)
	if token == "" {
		return nil, http.StatusUnauthorized, errors.New("missing document token")
	}
	claims, err := utils.ValidateDocumentToken(token, []byte(h.cfg.JWTSecret))
	if err != nil {
		return nil, http.StatusUnauthorized, err
	}
	if claims.DocumentID != docID {
		return nil, http.StatusForbidden, errors.New("token not valid for this document")
	}
	return claims, 0, nil
}

// CollabWS upgrades the connection, waits for the user-join handshake and
// then hands every inbound frame to the session router until the peer goes
// away.
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}
	claims, status, err := h.identity(r, docID)
	if err != nil {
		h.log.Warn("websocket auth rejected", "documentId", docID, "error", err.Error())
		writeError(w, status, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "documentId", docID, "error", err.Error())
		return
	}
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	join, ok := h.awaitJoin(conn, docID)
	if !ok {
		_ = conn.Close()
		return
	}
	who := models.Participant{UserID: join.UserID, Username: join.Username}
	if claims != nil {
		who.UserID = claims.UserID
		if claims.Username != "" {
			who.Username = claims.Username
		}
	}

	client := session.NewClient(conn, docID, who, h.cfg.SendQueueSize)
	h.armHeartbeat(conn)
	go client.WritePump(h.cfg.WriteWait, h.cfg.PingPeriod())

	if err := h.router.Join(r.Context(), client); err != nil {
		h.log.Warn("join rejected", "documentId", docID, "userId", who.UserID, "error", err.Error())
		client.Close()
		return
	}
	defer h.router.Leave(client)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read ended", "documentId", docID, "connectionId", client.ID, "error", err.Error())
			}
			return
		}
		h.router.HandleRaw(client, data)
	}
}

// awaitJoin reads the first frame, which must be a valid user-join sent
// within the join timeout. Anything else is answered with join_required.
func (h *Handlers) awaitJoin(conn *websocket.Conn, docID string) (models.UserJoin, bool) {
	if h.cfg.JoinTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.JoinTimeout))
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		h.log.Debug("no join frame received", "documentId", docID, "error", err.Error())
		return models.UserJoin{}, false
	}

	msg, err := models.Decode(data)
	if join, ok := msg.(models.UserJoin); ok && err == nil {
		return join, true
	}

	detail := "first frame must be user-join"
	if err != nil {
		detail += ": " + err.Error()
	}
	h.log.Warn("protocol violation", "documentId", docID, "code", models.CodeJoinRequired, "error", detail)
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	_ = conn.WriteJSON(models.ErrorFrame(&models.ProtocolError{Code: models.CodeJoinRequired, Message: detail}))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, models.CodeJoinRequired))
	return models.UserJoin{}, false
}

func (h *Handlers) armHeartbeat(conn *websocket.Conn) {
	if h.cfg.PongWait <= 0 {
		_ = conn.SetReadDeadline(time.Time{})
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
