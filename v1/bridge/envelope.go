package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidEnvelope is returned when a message body is not an envelope.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Envelope is the JSON document carried in every message body:
//
//	{"id": "<uuid>", "dt": "<RFC3339Nano>", "remoteName": "<module>", "message": <string|object>}
type Envelope struct {
	// ID is a fresh time-based UUID per send.
	ID string `json:"id"`

	// Time is captured when the envelope is built, not when the event was emitted.
	Time time.Time `json:"dt"`

	// RemoteName is the name of the module that emitted the event.
	RemoteName string `json:"remoteName"`

	// Message is the event payload: a string or any JSON value.
	Message interface{} `json:"message"`
}

// NewEnvelope wraps message for publishing.
func NewEnvelope(remoteName string, message interface{}, now time.Time) Envelope {
	return Envelope{
		ID:         newID(),
		Time:       now,
		RemoteName: remoteName,
		Message:    message,
	}
}

// newID returns a version 1 UUID, falling back to version 4 when no node ID is available.
func newID() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Encode serializes the envelope as UTF-8 JSON.
func (e Envelope) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return body, nil
}

// DecodeEnvelope parses a message body. The body must be a JSON object.
func DecodeEnvelope(body []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: body is not a JSON object", ErrInvalidEnvelope)
	}

	var e Envelope
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	return e, nil
}

// String returns the message text: the string payload itself, or its JSON form.
func (e Envelope) String() string {
	if s, ok := e.Message.(string); ok {
		return s
	}
	b, err := json.Marshal(e.Message)
	if err != nil {
		return fmt.Sprint(e.Message)
	}
	return string(b)
}

// MarshalLogObject lets zap write the envelope as a structured object.
func (e Envelope) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", e.ID)
	enc.AddTime("dt", e.Time)
	enc.AddString("remoteName", e.RemoteName)
	return enc.AddReflected("message", e.Message)
}
