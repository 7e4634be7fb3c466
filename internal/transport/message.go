// Package transport translates wire messages to and from Session calls and
// Session events. It owns the only JSON shapes a browser client ever sees;
// Session itself stays transport-agnostic.
package transport

import (
	"github.com/sumanthd032/collabtext/internal/clock"
	"github.com/sumanthd032/collabtext/internal/operation"
)

// Client message kinds, sent browser to server.
const (
	KindJoin   = "join"
	KindOp     = "op"
	KindAck    = "ack"
	KindCursor = "cursor"
	KindLeave  = "leave"
)

// Server message kinds, sent server to browser.
const (
	KindSnapshot = "snapshot"
	KindResync   = "resync"
	KindError    = "error"
)

// ClientMessage is the envelope for every inbound wire message. Only the
// fields relevant to Kind are populated; the rest are left zero.
type ClientMessage struct {
	Kind       string               `json:"kind"`
	DocumentID string               `json:"document_id,omitempty"`
	ClientID   clock.ClientID       `json:"client_id,omitempty"`
	Op         *operation.Operation `json:"op,omitempty"`
	Revision   uint64               `json:"revision,omitempty"`
	Position   int                  `json:"position,omitempty"`
	Selection  [2]int               `json:"selection,omitempty"`
}

// ServerMessage is the envelope for every outbound wire message.
type ServerMessage struct {
	Kind       string               `json:"kind"`
	DocumentID string               `json:"document_id,omitempty"`
	Revision   uint64               `json:"revision,omitempty"`
	Content    string               `json:"content,omitempty"`
	Clock      clock.VectorClock    `json:"clock,omitempty"`
	Op         *operation.Operation `json:"op,omitempty"`
	ClientID   clock.ClientID       `json:"client_id,omitempty"`
	Position   int                  `json:"position,omitempty"`
	Selection  [2]int               `json:"selection,omitempty"`
	Code       string               `json:"code,omitempty"`
	Message    string               `json:"message,omitempty"`
}
