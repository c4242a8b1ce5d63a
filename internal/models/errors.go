package models

import (
	"errors"
	"fmt"
)

var ErrDocumentNotFound = errors.New("document not found")

const (
	CodeMalformedEnvelope = "malformed_envelope"
	CodeUnknownType       = "unknown_type"
	CodeMissingField      = "missing_field"
	CodeInvalidField      = "invalid_field"
	CodeDuplicateJoin     = "duplicate_join"
	CodeJoinRequired      = "join_required"
)

// ProtocolError marks a frame that does not match the message catalog.
// It never closes the connection once a participant has joined.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func protocolError(code, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsProtocolError unwraps err into a *ProtocolError when it is one.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
