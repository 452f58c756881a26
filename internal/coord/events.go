package coord

import (
	"encoding/json"
	"fmt"
)

// Inbound event type names on the wire.
const (
	EventJoin    = "join-collaboration"
	EventLeave   = "leave-collaboration"
	EventUpdate  = "file-update"
	EventLock    = "file-lock"
	EventCursor  = "cursor-position"
	EventResolve = "resolve-conflict"
	EventHistory = "get-file-history"
)

// Event is the tagged union of all inbound transport events. The transport
// layer decodes raw frames into one of these and hands them to the
// coordinator; it never interprets payloads itself.
type Event interface {
	isEvent()
}

type JoinEvent struct {
	ContainerID string `json:"containerId"`
	FilePath    string `json:"filePath"`
	UserID      string `json:"userId"`
}

type LeaveEvent struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type UpdateEvent struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Version   int    `json:"version"`
	UserID    string `json:"userId"`
}

type LockEvent struct {
	SessionID string `json:"sessionId"`
	FilePath  string `json:"filePath"`
	UserID    string `json:"userId"`
	Lock      bool   `json:"lock"`
}

type CursorEvent struct {
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId"`
	Position  json.RawMessage `json:"position"`
}

type ResolveEvent struct {
	SessionID       string `json:"sessionId"`
	ResolvedContent string `json:"resolvedContent"`
	Strategy        string `json:"strategy"`
	UserID          string `json:"userId"`
}

type HistoryEvent struct {
	SessionID string `json:"sessionId"`
	Limit     int    `json:"limit"`
}

func (JoinEvent) isEvent()    {}
func (LeaveEvent) isEvent()   {}
func (UpdateEvent) isEvent()  {}
func (LockEvent) isEvent()    {}
func (CursorEvent) isEvent()  {}
func (ResolveEvent) isEvent() {}
func (HistoryEvent) isEvent() {}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeEvent parses a raw transport frame into a typed event.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	switch env.Type {
	case EventJoin:
		var ev JoinEvent
		return ev, decodePayload(env, &ev)
	case EventLeave:
		var ev LeaveEvent
		return ev, decodePayload(env, &ev)
	case EventUpdate:
		var ev UpdateEvent
		return ev, decodePayload(env, &ev)
	case EventLock:
		var ev LockEvent
		return ev, decodePayload(env, &ev)
	case EventCursor:
		var ev CursorEvent
		return ev, decodePayload(env, &ev)
	case EventResolve:
		var ev ResolveEvent
		return ev, decodePayload(env, &ev)
	case EventHistory:
		var ev HistoryEvent
		return ev, decodePayload(env, &ev)
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func decodePayload(env envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}
