// Package api defines the request and response payloads of the HTTP
// surface. Reply payloads reuse the engine's own packet types so the
// wire format matches what the dialogue core produces.
package api

import "github.com/convograph/convograph/types"

// ConnectRequest opens (or resumes) a session and returns the opening
// reply of the first triggered flow.
type ConnectRequest struct {
	SessionID string         `json:"session_id"`
	Params    map[string]any `json:"params,omitempty"`
}

// MessageRequest drives one dialogue turn.
type MessageRequest struct {
	SessionID string         `json:"session_id"`
	Says      string         `json:"says"`
	Params    map[string]any `json:"params,omitempty"`
	// FlowID forces the named flow when the current one ends this turn.
	FlowID string `json:"flow_id,omitempty"`
}

// MessageResponse wraps the engine reply packet.
type MessageResponse struct {
	Reply *types.ReplyPacket `json:"reply"`
}

// CloseRequest drops a session from memory and, when persistence is
// configured, from the snapshot store.
type CloseRequest struct {
	SessionID string `json:"session_id"`
}

// GraphRemoveRequest unloads a flow graph by id.
type GraphRemoveRequest struct {
	GraphID string `json:"graph_id"`
}
