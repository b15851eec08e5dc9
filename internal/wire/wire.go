// Package wire defines the control messages exchanged between the terminal
// client and the session host. After a successful handshake the connection
// carries opaque terminal bytes in binary frames; only control traffic uses
// these JSON text frames.
package wire

import "encoding/json"

// Handshake is the first frame the client sends on every connection attempt,
// initial or resumed. Config is the verbatim signedConfig string; the host
// recomputes the HMAC over those exact bytes.
type Handshake struct {
	SessionID string `json:"sessionId,omitempty"`
	Config    string `json:"config"`
	Signature string `json:"signature"`
}

// Server-to-client control message types.
const (
	// MessageHello acknowledges the handshake and carries the session id.
	MessageHello = "hello"
	// MessageAuthRejected terminates the attempt: the signature did not
	// match. Not retryable.
	MessageAuthRejected = "auth-rejected"
	// MessageStartFresh tells the client its resumption request was refused
	// and it should handshake again without a session id.
	MessageStartFresh = "start-fresh"
	// MessageBye announces an orderly server-side teardown.
	MessageBye = "bye"
)

// ServerMessage is a control frame from the session host.
type ServerMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Encode serializes m for a text frame.
func (m ServerMessage) Encode() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		// ServerMessage has no unmarshalable fields; this cannot happen.
		return []byte(`{"type":"` + m.Type + `"}`)
	}
	return data
}

// DecodeServerMessage parses a control frame. ok is false when the frame is
// not a recognizable control message (e.g. terminal output on a text frame).
func DecodeServerMessage(data []byte) (msg ServerMessage, ok bool) {
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{}, false
	}
	return msg, msg.Type != ""
}
