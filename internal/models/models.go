package models

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// client -> server
	TypeUserJoin      MessageType = "user-join"
	TypeContentUpdate MessageType = "content-update"
	TypeCommentNew    MessageType = "comment-new"

	// server -> client
	TypePresenceUpdate   MessageType = "presence-update"
	TypeContentBroadcast MessageType = "content-broadcast"
	TypeCommentBroadcast MessageType = "comment-broadcast"
	TypeContentSnapshot  MessageType = "content-snapshot"
	TypeError            MessageType = "error"
)

// Envelope is the wire shape of every frame, in both directions.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Frame is an outbound message queued for a single connection.
type Frame struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Comment struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"documentId"`
	Text           string    `json:"text"`
	SelectionStart int       `json:"selectionStart"`
	SelectionEnd   int       `json:"selectionEnd"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ContentPayload struct {
	Content string `json:"content"`
}

type SnapshotPayload struct {
	Content  string    `json:"content"`
	Comments []Comment `json:"comments"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SessionInfo is the operator view of a live session.
type SessionInfo struct {
	DocumentID   string        `json:"documentId"`
	State        string        `json:"state"`
	ContentBytes int           `json:"contentBytes"`
	Comments     int           `json:"comments"`
	Participants []Participant `json:"participants"`
}

// SessionClosedEvent is published when the last participant leaves a document.
type SessionClosedEvent struct {
	DocumentID string    `json:"documentId"`
	InstanceID string    `json:"instanceId"`
	Comments   int       `json:"comments"`
	OpenedAt   time.Time `json:"openedAt"`
	ClosedAt   time.Time `json:"closedAt"`
}

func PresenceFrame(roster []Participant) Frame {
	if roster == nil {
		roster = []Participant{}
	}
	return Frame{Type: TypePresenceUpdate, Payload: roster}
}

func ContentBroadcastFrame(content string) Frame {
	return Frame{Type: TypeContentBroadcast, Payload: ContentPayload{Content: content}}
}

func CommentBroadcastFrame(c Comment) Frame {
	return Frame{Type: TypeCommentBroadcast, Payload: c}
}

func SnapshotFrame(content string, comments []Comment) Frame {
	if comments == nil {
		comments = []Comment{}
	}
	return Frame{Type: TypeContentSnapshot, Payload: SnapshotPayload{Content: content, Comments: comments}}
}

func ErrorFrame(err *ProtocolError) Frame {
	return Frame{Type: TypeError, Payload: ErrorPayload{Code: err.Code, Message: err.Message}}
}
