// Package realtime – wire events.
//
// Client and server event kinds are closed enumerations matched
// exhaustively at the transport layer; unknown names are rejected rather
// than routed through a string-keyed handler table. Frames are JSON:
//
//	{ "event": "<name>", "data": { ... } }
package realtime

import (
	"encoding/json"
	"fmt"
)

// Server→client event names.
const (
	EventNetworkUpdate      = "networkUpdate"
	EventNetworkValueChange = "networkValueChange"
	EventInviteClicked      = "inviteClicked"
	EventError              = "error"
)

// Stable machine-readable codes carried by error frames and HTTP error
// envelopes.
const (
	CodeAuthenticationFailed   = "authentication_failed"
	CodeBadRequest             = "bad_request"
	CodeRateLimited            = "rate_limit_exceeded"
	CodeDuplicateConnection    = "duplicate_connection"
	CodeSelfConnection         = "self_connection"
	CodeUnauthorizedTransition = "unauthorized_transition"
	CodeUnauthorizedTopic      = "unauthorized_topic"
	CodeStaleState             = "stale_state"
	CodeConnectionBlocked      = "connection_blocked"
	CodeNotFound               = "not_found"
	CodeStoreUnavailable       = "store_unavailable"
)

// ClientEventKind enumerates the inbound event vocabulary.
type ClientEventKind int

// The closed set of client→server events.
const (
	ClientUnknown ClientEventKind = iota
	ClientSubscribeToNetwork
	ClientUnsubscribeFromNetwork
	ClientConnectionRequest
	ClientConnectionAccept
	ClientConnectionReject
	ClientInviteClick
)

// clientEventNames maps wire names to kinds. The zero kind stays unmapped
// so lookups of unknown names fail.
var clientEventNames = map[string]ClientEventKind{
	"subscribeToNetwork":     ClientSubscribeToNetwork,
	"unsubscribeFromNetwork": ClientUnsubscribeFromNetwork,
	"connectionRequest":      ClientConnectionRequest,
	"connectionAccept":       ClientConnectionAccept,
	"connectionReject":       ClientConnectionReject,
	"inviteClick":            ClientInviteClick,
}

// Name returns the wire name of the kind, or "" for ClientUnknown.
func (k ClientEventKind) Name() string {
	for name, kind := range clientEventNames {
		if kind == k {
			return name
		}
	}
	return ""
}

// Event is one server→client frame. Data holds a JSON-serializable payload
// (one of the payload structs below, or a decoded broker payload).
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// NetworkNode is one identity in a networkUpdate graph fragment.
type NetworkNode struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// NetworkLink is one edge in a networkUpdate graph fragment. Status carries
// the connection lifecycle state so clients can add, restyle, or remove the
// edge.
type NetworkLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Status string `json:"status"`
}

// NetworkUpdate describes a change to (or snapshot of) the visible network
// graph. Industry is set when the update is addressed to an industry topic.
type NetworkUpdate struct {
	Nodes    []NetworkNode `json:"nodes"`
	Links    []NetworkLink `json:"links"`
	Industry string        `json:"industry,omitempty"`
}

// NetworkValueChange reports a recomputed network value.
type NetworkValueChange struct {
	IdentityID string  `json:"identityId"`
	NewValue   float64 `json:"newValue"`
	Delta      float64 `json:"delta"`
}

// InviteClicked reports the running click count of an invite.
type InviteClicked struct {
	InviteID   string `json:"inviteId"`
	ClickCount int64  `json:"clickCount"`
}

// ErrorPayload is the body of an error frame: a stable machine-readable
// code plus a human-readable message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEvent builds an error frame.
func ErrorEvent(code, message string) Event {
	return Event{Name: EventError, Data: ErrorPayload{Code: code, Message: message}}
}

// ClientFrame is one decoded client→server frame. Only the fields relevant
// to the frame's kind are populated.
type ClientFrame struct {
	Kind         ClientEventKind
	Industries   []string
	TargetID     string
	ConnectionID string
	InviteID     string
}

// clientFrameWire is the raw JSON shape of an inbound frame.
type clientFrameWire struct {
	Event string `json:"event"`
	Data  struct {
		Industries   []string `json:"industries"`
		TargetID     string   `json:"targetId"`
		ConnectionID string   `json:"connectionId"`
		InviteID     string   `json:"inviteId"`
	} `json:"data"`
}

// ParseClientFrame decodes and validates one inbound frame. It fails on
// malformed JSON, unknown event names, and frames missing the field their
// kind requires.
func ParseClientFrame(raw []byte) (ClientFrame, error) {
	var wire clientFrameWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return ClientFrame{}, fmt.Errorf("malformed frame: %w", err)
	}

	kind, ok := clientEventNames[wire.Event]
	if !ok {
		return ClientFrame{}, fmt.Errorf("unknown event %q", wire.Event)
	}

	f := ClientFrame{
		Kind:         kind,
		Industries:   wire.Data.Industries,
		TargetID:     wire.Data.TargetID,
		ConnectionID: wire.Data.ConnectionID,
		InviteID:     wire.Data.InviteID,
	}

	switch kind {
	case ClientSubscribeToNetwork, ClientUnsubscribeFromNetwork:
		if len(f.Industries) == 0 {
			return ClientFrame{}, fmt.Errorf("%s: industries required", wire.Event)
		}
	case ClientConnectionRequest:
		if f.TargetID == "" {
			return ClientFrame{}, fmt.Errorf("%s: targetId required", wire.Event)
		}
	case ClientConnectionAccept, ClientConnectionReject:
		if f.ConnectionID == "" {
			return ClientFrame{}, fmt.Errorf("%s: connectionId required", wire.Event)
		}
	case ClientInviteClick:
		if f.InviteID == "" {
			return ClientFrame{}, fmt.Errorf("%s: inviteId required", wire.Event)
		}
	}
	return f, nil
}
