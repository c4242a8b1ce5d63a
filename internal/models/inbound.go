package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Inbound is the closed set of client -> server messages. The unexported
// method keeps other packages from adding variants.
type Inbound interface {
	Type() MessageType
	inbound()
}

type UserJoin struct {
	UserID   string
	Username string
}

type ContentUpdate struct {
	Content string
}

type CommentNew struct {
	Text           string
	SelectionStart int
	SelectionEnd   int
}

func (UserJoin) Type() MessageType      { return TypeUserJoin }
func (ContentUpdate) Type() MessageType { return TypeContentUpdate }
func (CommentNew) Type() MessageType    { return TypeCommentNew }

func (UserJoin) inbound()      {}
func (ContentUpdate) inbound() {}
func (CommentNew) inbound()    {}

// wire shapes; pointers distinguish a missing field from a zero value
type userJoinWire struct {
	UserID   *string `json:"userId"`
	Username *string `json:"username"`
}

type contentUpdateWire struct {
	Content *string `json:"content"`
}

type commentNewWire struct {
	Text           *string `json:"text"`
	SelectionStart *int    `json:"selectionStart"`
	SelectionEnd   *int    `json:"selectionEnd"`
}

// Decode parses one inbound frame. Every failure is a *ProtocolError.
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, protocolError(CodeMalformedEnvelope, "invalid envelope: %v", err)
	}
	if env.Type == "" {
		return nil, protocolError(CodeMissingField, "type is required")
	}

	switch env.Type {
	case TypeUserJoin:
		var w userJoinWire
		if err := decodePayload(env, &w); err != nil {
			return nil, err
		}
		if w.UserID == nil || strings.TrimSpace(*w.UserID) == "" {
			return nil, protocolError(CodeMissingField, "user-join: userId is required")
		}
		if w.Username == nil || strings.TrimSpace(*w.Username) == "" {
			return nil, protocolError(CodeMissingField, "user-join: username is required")
		}
		return UserJoin{UserID: *w.UserID, Username: *w.Username}, nil

	case TypeContentUpdate:
		var w contentUpdateWire
		if err := decodePayload(env, &w); err != nil {
			return nil, err
		}
		if w.Content == nil {
			return nil, protocolError(CodeMissingField, "content-update: content is required")
		}
		return ContentUpdate{Content: *w.Content}, nil

	case TypeCommentNew:
		var w commentNewWire
		if err := decodePayload(env, &w); err != nil {
			return nil, err
		}
		if w.Text == nil {
			return nil, protocolError(CodeMissingField, "comment-new: text is required")
		}
		if w.SelectionStart == nil || w.SelectionEnd == nil {
			return nil, protocolError(CodeMissingField, "comment-new: selectionStart and selectionEnd are required")
		}
		if strings.TrimSpace(*w.Text) == "" {
			return nil, protocolError(CodeInvalidField, "comment-new: text is empty")
		}
		if *w.SelectionStart < 0 || *w.SelectionEnd < *w.SelectionStart {
			return nil, protocolError(CodeInvalidField, "comment-new: invalid selection %d..%d", *w.SelectionStart, *w.SelectionEnd)
		}
		return CommentNew{Text: *w.Text, SelectionStart: *w.SelectionStart, SelectionEnd: *w.SelectionEnd}, nil

	default:
		return nil, protocolError(CodeUnknownType, "unknown message type %q", env.Type)
	}
}

func decodePayload(env Envelope, out any) error {
	raw := bytes.TrimSpace(env.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return protocolError(CodeMissingField, "%s: payload is required", env.Type)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return protocolError(CodeInvalidField, "%s: %v", env.Type, err)
	}
	return nil
}
