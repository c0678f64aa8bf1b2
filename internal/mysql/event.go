package mysql

import "time"

// Direction is which side of a TCP flow a frame travelled.
type Direction int

const (
	// DirToServer is client -> server (a request).
	DirToServer Direction = iota
	// DirToClient is server -> client (a response).
	DirToClient
)

func (d Direction) String() string {
	if d == DirToServer {
		return "to_server"
	}
	return "to_client"
}

// Event is one decoded MySQL protocol occurrence, emitted by the Decoder to
// the sink (component G). Kind names the concrete decoded struct held in
// Payload, matching the packet type names used throughout this package
// ("HandshakeV10", "OKPacket", "QueryPacket", "TextResultSet", ...).
type Event struct {
	SessionID  string      `json:"session_id"`
	EventIndex uint64      `json:"event_index"`
	CapturedAt time.Time   `json:"captured_at"`
	Direction  Direction   `json:"direction"`
	Kind       string      `json:"kind"`
	Payload    interface{} `json:"payload"`
}

// DecodeError is an Event.Kind value for a frame the Decoder could not
// parse; Payload is a decodeErrorPayload. A decode failure mid-stream does
// not abort the session (spec.md §7 Edge Cases: "malformed packet
// mid-stream") — the decoder logs the error as an event and keeps going from
// the next frame. A malformed greeting or login is the exception: its
// DecodeError is followed by a Closed event and the session ends.
const DecodeErrorKind = "DecodeError"

type decodeErrorPayload struct {
	Reason string `json:"reason"`
	Phase  string `json:"phase"`
}

// ClosedKind is the Event.Kind value emitted once per session when it
// reaches PhaseClosed, whatever the cause (spec.md §3: Event's tagged
// values include "Closed"). Payload is a ClosedPayload.
const ClosedKind = "Closed"

// ClosedPayload names why a session transitioned to Closed: "fin", "rst",
// "idle_timeout", or a decode-phase reason such as "malformed_greeting" /
// "malformed_login".
type ClosedPayload struct {
	Reason string `json:"reason"`
}
