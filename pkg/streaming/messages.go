// Package streaming defines the share protocol spoken by the websocket
// backend. Every frame is an Envelope; the server answers open, document
// and close frames with an AckMessage.
package streaming

import (
	"encoding/json"
)

// Message types.
const (
	TypeOpenDocument  = "open_document"
	TypeDocument      = "document"
	TypeCloseDocument = "close_document"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// OpenPayload names the document the following frames belong to.
type OpenPayload struct {
	Name   string `json:"name"`
	Client string `json:"client,omitempty"`
}

// ClosePayload ends a share session.
type ClosePayload struct {
	Name string `json:"name"`
}
