// Package coord translates transport events into session registry calls and
// registry outcomes into typed outbound messages. It owns no transport
// mechanics: the WebSocket layer decodes frames into events, calls
// HandleEvent or HandleDisconnect, and routes the returned messages. This
// keeps the whole collaboration protocol testable without a socket.
package coord

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mkazlausk/collabsync/internal/session"
	"github.com/mkazlausk/collabsync/internal/store"
)

const writeBackTimeout = 5 * time.Second

// Notifier receives fire-and-forget session lifecycle signals. A nil
// Notifier disables notifications.
type Notifier interface {
	SessionCreated(sessionID, containerID, filePath string)
	SessionClosed(sessionID, containerID, filePath string)
	ConflictDetected(sessionID, filePath, userID string)
}

// Coordinator drives the session registry from transport events.
type Coordinator struct {
	registry *session.Registry
	files    store.FileStore
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string]map[string]string // connID -> sessionID -> userID
}

// New creates a coordinator. files seeds new sessions and receives content
// write-back; notifier may be nil.
func New(registry *session.Registry, files store.FileStore, notifier Notifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registry: registry,
		files:    files,
		notifier: notifier,
		logger:   logger,
		conns:    make(map[string]map[string]string),
	}
}

// HandleEvent processes one inbound event from the identified connection.
func (c *Coordinator) HandleEvent(ctx context.Context, connID string, ev Event) Result {
	switch ev := ev.(type) {
	case JoinEvent:
		return c.handleJoin(ctx, connID, ev)
	case LeaveEvent:
		return c.handleLeave(ctx, connID, ev)
	case UpdateEvent:
		return c.handleUpdate(ev)
	case LockEvent:
		return c.handleLock(ev)
	case CursorEvent:
		return c.handleCursor(ev)
	case ResolveEvent:
		return c.handleResolve(ev)
	case HistoryEvent:
		return c.handleHistory(ev)
	default:
		return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "unsupported event"})}}
	}
}

// HandleDisconnect treats a dropped connection as a leave for every session
// its user had joined.
func (c *Coordinator) HandleDisconnect(ctx context.Context, connID string) Result {
	c.mu.Lock()
	memberships := c.conns[connID]
	delete(c.conns, connID)
	c.mu.Unlock()

	var res Result
	for sessionID, userID := range memberships {
		leave := c.handleLeave(ctx, connID, LeaveEvent{SessionID: sessionID, UserID: userID})
		res.Messages = append(res.Messages, leave.Messages...)
		res.Unsubscribe = append(res.Unsubscribe, leave.Unsubscribe...)
	}
	return res
}

func (c *Coordinator) handleJoin(ctx context.Context, connID string, ev JoinEvent) Result {
	initial, err := c.files.Read(ctx, ev.ContainerID, ev.FilePath)
	if err != nil && !errors.Is(err, store.ErrFileNotFound) {
		c.logger.Warn("file store read failed, starting from empty content",
			"container_id", ev.ContainerID, "file", ev.FilePath, "error", err)
		initial = ""
	}

	snap, isNew := c.registry.JoinOrCreate(ev.ContainerID, ev.FilePath, ev.UserID, initial)

	c.mu.Lock()
	if c.conns[connID] == nil {
		c.conns[connID] = make(map[string]string)
	}
	c.conns[connID][snap.SessionID] = ev.UserID
	c.mu.Unlock()

	if isNew && c.notifier != nil {
		c.notifier.SessionCreated(snap.SessionID, ev.ContainerID, ev.FilePath)
	}

	return Result{
		Subscribe: []string{snap.SessionID},
		Messages: []Outgoing{
			senderMsg(MsgSessionState, snap),
			roomExceptSenderMsg(snap.SessionID, MsgUserJoined, UserJoinedPayload{
				UserID:    ev.UserID,
				UserCount: len(snap.Users),
			}),
		},
	}
}

func (c *Coordinator) handleLeave(ctx context.Context, connID string, ev LeaveEvent) Result {
	leave, err := c.registry.Leave(ev.SessionID, ev.UserID)
	if err != nil {
		return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "session not found"})}}
	}

	c.mu.Lock()
	if m := c.conns[connID]; m != nil {
		delete(m, ev.SessionID)
		if len(m) == 0 {
			delete(c.conns, connID)
		}
	}
	c.mu.Unlock()

	msgs := []Outgoing{
		roomExceptSenderMsg(ev.SessionID, MsgUserLeft, UserLeftPayload{
			UserID:    ev.UserID,
			UserCount: leave.UserCount,
		}),
	}
	for _, path := range leave.ReleasedLocks {
		msgs = append(msgs, roomExceptSenderMsg(ev.SessionID, MsgLockChanged, LockChangedPayload{
			FilePath: path,
			Locked:   false,
			UserID:   ev.UserID,
		}))
	}

	if leave.Destroyed {
		c.writeBack(ctx, leave.ContainerID, leave.FilePath, leave.Content)
		if c.notifier != nil {
			c.notifier.SessionClosed(ev.SessionID, leave.ContainerID, leave.FilePath)
		}
	}

	return Result{Messages: msgs, Unsubscribe: []string{ev.SessionID}}
}

func (c *Coordinator) handleUpdate(ev UpdateEvent) Result {
	res, err := c.registry.ApplyUpdate(ev.SessionID, ev.UserID, ev.Version, ev.Content)
	if err != nil {
		return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "session not found"})}}
	}

	switch res.Status {
	case session.UpdateApplied:
		return Result{Messages: []Outgoing{
			roomExceptSenderMsg(ev.SessionID, MsgFileUpdated, FileUpdatedPayload{
				Content: res.Content,
				Version: res.Version,
				UserID:  ev.UserID,
			}),
		}}
	case session.UpdateAutoResolved:
		return Result{Messages: []Outgoing{
			roomMsg(ev.SessionID, MsgAutoResolved, AutoResolvedPayload{
				Content:    res.Content,
				Version:    res.Version,
				UserID:     ev.UserID,
				Resolution: *res.Resolution,
			}),
		}}
	default:
		if c.notifier != nil {
			snap, snapErr := c.registry.Snapshot(ev.SessionID)
			if snapErr == nil {
				c.notifier.ConflictDetected(ev.SessionID, snap.FilePath, ev.UserID)
			}
		}
		return Result{Messages: []Outgoing{
			senderMsg(MsgConflictDetected, ConflictDetectedPayload{
				Resolution:     *res.Resolution,
				CurrentVersion: res.Version,
			}),
		}}
	}
}

func (c *Coordinator) handleLock(ev LockEvent) Result {
	if ev.Lock {
		granted, holder, err := c.registry.TryAcquireLock(ev.SessionID, ev.FilePath, ev.UserID)
		if err != nil {
			return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "session not found"})}}
		}
		if !granted {
			return Result{Messages: []Outgoing{
				senderMsg(MsgLockFailed, LockFailedPayload{FilePath: ev.FilePath, LockedBy: holder}),
			}}
		}
		return Result{Messages: []Outgoing{
			roomMsg(ev.SessionID, MsgLockChanged, LockChangedPayload{
				FilePath: ev.FilePath,
				Locked:   true,
				UserID:   ev.UserID,
			}),
		}}
	}

	released, err := c.registry.ReleaseLock(ev.SessionID, ev.FilePath, ev.UserID)
	if err != nil {
		return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "session not found"})}}
	}
	if !released {
		return Result{Messages: []Outgoing{
			senderMsg(MsgError, ErrorPayload{Message: "not the lock holder"}),
		}}
	}
	return Result{Messages: []Outgoing{
		roomMsg(ev.SessionID, MsgLockChanged, LockChangedPayload{
			FilePath: ev.FilePath,
			Locked:   false,
			UserID:   ev.UserID,
		}),
	}}
}

func (c *Coordinator) handleCursor(ev CursorEvent) Result {
	// Cursor positions are forwarded, never stored.
	if _, err := c.registry.Snapshot(ev.SessionID); err != nil {
		return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "session not found"})}}
	}
	return Result{Messages: []Outgoing{
		roomExceptSenderMsg(ev.SessionID, MsgCursorMoved, CursorMovedPayload{
			UserID:   ev.UserID,
			Position: ev.Position,
		}),
	}}
}

func (c *Coordinator) handleResolve(ev ResolveEvent) Result {
	version, err := c.registry.ResolveManually(ev.SessionID, ev.UserID, ev.ResolvedContent)
	if err != nil {
		return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "session not found"})}}
	}
	return Result{Messages: []Outgoing{
		roomMsg(ev.SessionID, MsgConflictResolved, ConflictResolvedPayload{
			Content:  ev.ResolvedContent,
			Version:  version,
			UserID:   ev.UserID,
			Strategy: ev.Strategy,
		}),
	}}
}

func (c *Coordinator) handleHistory(ev HistoryEvent) Result {
	history, totalVersions, err := c.registry.History(ev.SessionID, ev.Limit)
	if err != nil {
		return Result{Messages: []Outgoing{senderMsg(MsgError, ErrorPayload{Message: "session not found"})}}
	}
	return Result{Messages: []Outgoing{
		senderMsg(MsgFileHistory, FileHistoryPayload{
			SessionID:     ev.SessionID,
			History:       history,
			TotalVersions: totalVersions,
		}),
	}}
}

// WriteBackAll persists every live session's content to the file store.
// Used on shutdown.
func (c *Coordinator) WriteBackAll(ctx context.Context) {
	for _, snap := range c.registry.Snapshots() {
		c.writeBack(ctx, snap.ContainerID, snap.FilePath, snap.Content)
	}
}

func (c *Coordinator) writeBack(ctx context.Context, containerID, filePath, content string) {
	wctx, cancel := context.WithTimeout(withoutCancel(ctx), writeBackTimeout)
	defer cancel()

	if err := c.files.Write(wctx, containerID, filePath, content); err != nil {
		c.logger.Error("content write-back failed",
			"container_id", containerID, "file", filePath, "error", err)
	}
}

// withoutCancel detaches the write-back from the triggering request so a
// closing connection cannot abort persistence mid-write.
func withoutCancel(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
