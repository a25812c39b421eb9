package ws

import (
	"bytes"
	"encoding/json"
)

// Event names reserved by the hub. Anything else is application defined
// (e.g. "likeCount-updated") and forwarded untouched.
const (
	EventRegister   = "register"   // client -> server, data: user id scalar
	EventRegistered = "registered" // server -> client, data: RegisteredPayload
	EventError      = "error"      // server -> client, data: ErrorPayload
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inbound is the decoding side of Message: data stays raw until the event
// handler decides how to read it.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type RegisteredPayload struct {
	Group string `json:"group"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserIDString returns the literal string form of a user id sent by a client:
// JSON strings are unquoted, any other value keeps its compact JSON text,
// so 42 and "42" both yield "42".
func UserIDString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return string(raw)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
