package models

import "time"

// OperationType identifies what kind of mutation produced a history entry.
type OperationType string

const (
	OperationCreate             OperationType = "create"
	OperationUpdate             OperationType = "update"
	OperationMerge              OperationType = "merge"
	OperationConflictResolution OperationType = "conflict-resolution"
)

// HistoryEntry records one accepted mutation of a session's content.
// Entries are immutable once appended.
type HistoryEntry struct {
	Version   int           `json:"version"`
	Content   string        `json:"content"`
	UserID    string        `json:"userId"`
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
}

// LockInfo describes the holder of an advisory lock on a sub-resource path.
type LockInfo struct {
	HolderID   string    `json:"holderId"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// SessionSnapshot is the point-in-time view of a session handed to a
// client when it joins.
type SessionSnapshot struct {
	SessionID   string              `json:"sessionId"`
	ContainerID string              `json:"containerId"`
	FilePath    string              `json:"filePath"`
	Content     string              `json:"content"`
	Version     int                 `json:"version"`
	Users       []string            `json:"users"`
	Locks       map[string]LockInfo `json:"locks"`
}

// SessionSummary is the compact listing entry exposed on the admin API.
type SessionSummary struct {
	SessionID   string    `json:"sessionId"`
	ContainerID string    `json:"containerId"`
	FilePath    string    `json:"filePath"`
	Version     int       `json:"version"`
	UserCount   int       `json:"userCount"`
	LockCount   int       `json:"lockCount"`
	CreatedAt   time.Time `json:"createdAt"`
}
