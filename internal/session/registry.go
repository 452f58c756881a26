// Package session owns the live collaborative state: one record per
// (containerID, filePath) pair holding membership, the authoritative
// content, the optimistic version counter, advisory locks, and a bounded
// mutation history. The registry is the single authority for all session
// mutations; callers interact with it only through snapshots and outcome
// values.
package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkazlausk/collabsync/internal/merge"
	"github.com/mkazlausk/collabsync/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// DefaultHistoryLimit bounds the in-memory history log per session.
const DefaultHistoryLimit = 100

// UpdateStatus labels the outcome of ApplyUpdate.
type UpdateStatus string

const (
	UpdateApplied      UpdateStatus = "applied"
	UpdateAutoResolved UpdateStatus = "auto-resolved"
	UpdateConflict     UpdateStatus = "conflict"
)

// UpdateResult carries the outcome of an optimistic content update.
// Version and Content reflect the session after the call; Resolution is
// set for the auto-resolved and conflict outcomes.
type UpdateResult struct {
	Status     UpdateStatus
	Version    int
	Content    string
	Resolution *models.ConflictResolution
}

// LeaveResult reports the session state after a user left. When Destroyed
// is true the session no longer exists and Content holds its final
// authoritative text for write-back.
type LeaveResult struct {
	UserCount     int
	Destroyed     bool
	ContainerID   string
	FilePath      string
	Content       string
	ReleasedLocks []string
}

// session is one live collaboration record. All field access goes through
// mu; the registry may be driven concurrently from many connection
// goroutines.
type session struct {
	mu          sync.Mutex
	id          string
	containerID string
	filePath    string
	users       map[string]bool
	version     int
	content     string
	baseContent string
	locks       *LockTable
	history     []models.HistoryEntry
	createdAt   time.Time
}

// Registry holds all live sessions, indexed by opaque session id with a
// secondary (containerID, filePath) lookup.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*session
	byKey        map[string]string
	resolver     *merge.Resolver
	historyLimit int
	logger       *slog.Logger
}

// NewRegistry creates a session registry. historyLimit bounds each
// session's history log; zero or negative selects DefaultHistoryLimit.
func NewRegistry(resolver *merge.Resolver, historyLimit int, logger *slog.Logger) *Registry {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:     make(map[string]*session),
		byKey:        make(map[string]string),
		resolver:     resolver,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

func sessionKey(containerID, filePath string) string {
	return containerID + "\x00" + filePath
}

// JoinOrCreate adds userID to the session for (containerID, filePath),
// creating it if none exists. initialContent seeds a newly created session
// and is ignored when the session already exists.
func (r *Registry) JoinOrCreate(containerID, filePath, userID, initialContent string) (models.SessionSnapshot, bool) {
	key := sessionKey(containerID, filePath)

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		s := r.sessions[id]
		s.mu.Lock()
		s.users[userID] = true
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, false
	}

	now := time.Now().UTC()
	s := &session{
		id:          uuid.New().String(),
		containerID: containerID,
		filePath:    filePath,
		users:       map[string]bool{userID: true},
		version:     1,
		content:     initialContent,
		baseContent: initialContent,
		locks:       NewLockTable(),
		createdAt:   now,
	}
	s.history = append(s.history, models.HistoryEntry{
		Version:   1,
		Content:   initialContent,
		UserID:    userID,
		Timestamp: now,
		Operation: models.OperationCreate,
	})

	r.sessions[s.id] = s
	r.byKey[key] = s.id
	r.logger.Info("session created", "session_id", s.id, "container_id", containerID, "file", filePath, "user", userID)

	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, true
}

// Leave removes userID from the session, releasing any locks it held.
// The session is destroyed when the last user leaves.
func (r *Registry) Leave(sessionID, userID string) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return LeaveResult{}, ErrSessionNotFound
	}

	s.mu.Lock()
	delete(s.users, userID)
	released := s.locks.ReleaseAll(userID)
	res := LeaveResult{
		UserCount:     len(s.users),
		ContainerID:   s.containerID,
		FilePath:      s.filePath,
		Content:       s.content,
		ReleasedLocks: released,
	}
	s.mu.Unlock()

	if res.UserCount == 0 {
		delete(r.sessions, sessionID)
		delete(r.byKey, sessionKey(res.ContainerID, res.FilePath))
		res.Destroyed = true
		r.logger.Info("session destroyed", "session_id", sessionID, "file", res.FilePath)
	}

	return res, nil
}

// ApplyUpdate runs the optimistic version-conflict protocol. A matching
// expectedVersion applies newContent directly. On a mismatch the conflict
// resolver merges the incoming content against the session's current state:
// an auto-resolvable merge is applied, anything else is reported back as a
// conflict with no state change.
func (r *Registry) ApplyUpdate(sessionID, userID string, expectedVersion int, newContent string) (UpdateResult, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return UpdateResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expectedVersion == s.version {
		s.baseContent = s.content
		s.content = newContent
		s.version++
		r.appendHistoryLocked(s, userID, models.OperationUpdate)
		return UpdateResult{Status: UpdateApplied, Version: s.version, Content: s.content}, nil
	}

	res := r.safeResolve(s.baseContent, s.content, newContent, s.filePath, userID)

	if res.Metadata.AutoResolved {
		s.baseContent = s.content
		s.content = res.ResolvedContent
		s.version++
		r.appendHistoryLocked(s, userID, models.OperationMerge)
		return UpdateResult{Status: UpdateAutoResolved, Version: s.version, Content: s.content, Resolution: &res}, nil
	}

	return UpdateResult{Status: UpdateConflict, Version: s.version, Content: s.content, Resolution: &res}, nil
}

// ResolveManually applies a client-chosen resolution unconditionally; the
// last writer's manual choice wins regardless of the current version.
func (r *Registry) ResolveManually(sessionID, userID, resolvedContent string) (int, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseContent = s.content
	s.content = resolvedContent
	s.version++
	r.appendHistoryLocked(s, userID, models.OperationConflictResolution)
	return s.version, nil
}

// TryAcquireLock attempts to grant the advisory lock on path to userID.
func (r *Registry) TryAcquireLock(sessionID, path, userID string) (granted bool, holderID string, err error) {
	s, err := r.get(sessionID)
	if err != nil {
		return false, "", err
	}
	granted, holderID = s.locks.TryAcquire(path, userID)
	return granted, holderID, nil
}

// ReleaseLock releases the advisory lock on path if userID holds it.
func (r *Registry) ReleaseLock(sessionID, path, userID string) (bool, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return false, err
	}
	return s.locks.Release(path, userID), nil
}

// Snapshot returns the current state of a session.
func (r *Registry) Snapshot(sessionID string) (models.SessionSnapshot, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return models.SessionSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// History returns up to limit most recent history entries (all when limit
// is zero or negative) plus the session's total version count.
func (r *Registry) History(sessionID string, limit int) ([]models.HistoryEntry, int, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]models.HistoryEntry, len(entries))
	copy(out, entries)
	return out, s.version, nil
}

// Summaries lists all live sessions, ordered by creation time.
func (r *Registry) Summaries() []models.SessionSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(r.sessions))
	for _, s := range r.sessions {
		s.mu.Lock()
		out = append(out, models.SessionSummary{
			SessionID:   s.id,
			ContainerID: s.containerID,
			FilePath:    s.filePath,
			Version:     s.version,
			UserCount:   len(s.users),
			LockCount:   s.locks.Len(),
			CreatedAt:   s.createdAt,
		})
		s.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Snapshots returns the full state of every live session, used for
// write-back during shutdown.
func (r *Registry) Snapshots() []models.SessionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.SessionSnapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		s.mu.Lock()
		out = append(out, s.snapshotLocked())
		s.mu.Unlock()
	}
	return out
}

func (r *Registry) get(sessionID string) (*session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) appendHistoryLocked(s *session, userID string, op models.OperationType) {
	s.history = append(s.history, models.HistoryEntry{
		Version:   s.version,
		Content:   s.content,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Operation: op,
	})
	if len(s.history) > r.historyLimit {
		s.history = s.history[len(s.history)-r.historyLimit:]
	}
}

// safeResolve shields the registry from resolver panics: merge heuristics
// must never stall the session, so a panic downgrades to last-write-wins
// with the incoming remote content.
func (r *Registry) safeResolve(base, local, remote, filePath, userID string) (res models.ConflictResolution) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("conflict resolver panicked, falling back to last-write-wins",
				"error", rec, "file", filePath, "user", userID)
			res = models.ConflictResolution{
				Strategy:           models.StrategyLastWriteWins,
				ResolvedContent:    remote,
				ConflictedSections: []models.ConflictSection{},
				Metadata: models.ResolutionMetadata{
					ConflictType: models.ConflictTextual,
					Severity:     models.SeverityHigh,
					AutoResolved: true,
					UserID:       userID,
					Timestamp:    time.Now().UTC(),
				},
			}
		}
	}()
	return r.resolver.Resolve(base, local, remote, filePath, userID)
}

func (s *session) snapshotLocked() models.SessionSnapshot {
	users := make([]string, 0, len(s.users))
	for u := range s.users {
		users = append(users, u)
	}
	sort.Strings(users)

	return models.SessionSnapshot{
		SessionID:   s.id,
		ContainerID: s.containerID,
		FilePath:    s.filePath,
		Content:     s.content,
		Version:     s.version,
		Users:       users,
		Locks:       s.locks.Snapshot(),
	}
}
