package websocket

import (
	"github.com/bitlabs/talentstream-proctor/internal/attempt"
	"github.com/bitlabs/talentstream-proctor/internal/model"
)

// ─── Requests (Client → Server) ─────────────────────────────────────

// ActionPing keeps the stream alive without touching the attempt.
const ActionPing attempt.ActionType = "ping"

// Request is one attempt action. Ref is echoed in the matching ack or error
// so the client can correlate replies.
type Request struct {
	attempt.Action
	Ref string `json:"ref,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSnapshot Event = "snapshot"
	EventAck      Event = "ack"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// SnapshotEvent carries every state change, including the 1 Hz countdown.
type SnapshotEvent struct {
	Event    Event          `json:"event"`
	Snapshot model.Snapshot `json:"snapshot"`
}

type AckResponse struct {
	Event Event  `json:"event"`
	Ref   string `json:"ref,omitempty"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Ref    string            `json:"ref,omitempty"`
	Code   string            `json:"code"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
