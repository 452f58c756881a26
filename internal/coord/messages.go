package coord

import (
	"encoding/json"

	"github.com/mkazlausk/collabsync/internal/models"
)

// Outbound message type names on the wire.
const (
	MsgSessionState     = "session-state"
	MsgUserJoined       = "user-joined"
	MsgUserLeft         = "user-left"
	MsgFileUpdated      = "file-updated"
	MsgAutoResolved     = "auto-conflict-resolved"
	MsgConflictDetected = "conflict-detected"
	MsgLockChanged      = "file-lock-changed"
	MsgLockFailed       = "lock-failed"
	MsgCursorMoved      = "cursor-moved"
	MsgConflictResolved = "conflict-resolved"
	MsgFileHistory      = "file-history"
	MsgError            = "error"
)

// Audience selects who receives an outgoing message within a session room.
type Audience int

const (
	ToSender Audience = iota
	ToRoom
	ToRoomExceptSender
)

// Message is one outbound transport frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Outgoing pairs a message with its audience. SessionID is empty for
// sender-only messages that are not bound to a room.
type Outgoing struct {
	Audience  Audience
	SessionID string
	Message   Message
}

// Result is the coordinator's full reaction to one inbound event: the
// messages to deliver plus room membership changes for the sending
// connection. The transport applies Subscribe before delivering messages
// and Unsubscribe after.
type Result struct {
	Messages    []Outgoing
	Subscribe   []string
	Unsubscribe []string
}

type UserJoinedPayload struct {
	UserID    string `json:"userId"`
	UserCount int    `json:"userCount"`
}

type UserLeftPayload struct {
	UserID    string `json:"userId"`
	UserCount int    `json:"userCount"`
}

type FileUpdatedPayload struct {
	Content string `json:"content"`
	Version int    `json:"version"`
	UserID  string `json:"userId"`
}

type AutoResolvedPayload struct {
	Content    string                    `json:"content"`
	Version    int                       `json:"version"`
	UserID     string                    `json:"userId"`
	Resolution models.ConflictResolution `json:"resolution"`
}

type ConflictDetectedPayload struct {
	Resolution     models.ConflictResolution `json:"resolution"`
	CurrentVersion int                       `json:"currentVersion"`
}

type LockChangedPayload struct {
	FilePath string `json:"filePath"`
	Locked   bool   `json:"locked"`
	UserID   string `json:"userId"`
}

type LockFailedPayload struct {
	FilePath string `json:"filePath"`
	LockedBy string `json:"lockedBy"`
}

type CursorMovedPayload struct {
	UserID   string          `json:"userId"`
	Position json.RawMessage `json:"position"`
}

type ConflictResolvedPayload struct {
	Content  string `json:"content"`
	Version  int    `json:"version"`
	UserID   string `json:"userId"`
	Strategy string `json:"strategy"`
}

type FileHistoryPayload struct {
	SessionID     string                `json:"sessionId"`
	History       []models.HistoryEntry `json:"history"`
	TotalVersions int                   `json:"totalVersions"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func senderMsg(msgType string, payload any) Outgoing {
	return Outgoing{Audience: ToSender, Message: Message{Type: msgType, Payload: payload}}
}

func roomMsg(sessionID, msgType string, payload any) Outgoing {
	return Outgoing{Audience: ToRoom, SessionID: sessionID, Message: Message{Type: msgType, Payload: payload}}
}

func roomExceptSenderMsg(sessionID, msgType string, payload any) Outgoing {
	return Outgoing{Audience: ToRoomExceptSender, SessionID: sessionID, Message: Message{Type: msgType, Payload: payload}}
}
