package session

import (
	"sync"
	"time"

	"github.com/mkazlausk/collabsync/internal/models"
)

// LockTable tracks advisory exclusive-edit locks on sub-resource paths
// within one session. Locks signal intent to other clients; they never
// block content updates. At most one holder exists per path.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]models.LockInfo
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]models.LockInfo)}
}

// TryAcquire grants the lock on path to userID if the path is unlocked or
// already held by the same user. On denial it returns the current holder.
func (t *LockTable) TryAcquire(path, userID string) (granted bool, holderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if info, held := t.locks[path]; held && info.HolderID != userID {
		return false, info.HolderID
	}

	if info, held := t.locks[path]; held {
		// Idempotent re-acquire keeps the original timestamp.
		return true, info.HolderID
	}

	t.locks[path] = models.LockInfo{HolderID: userID, AcquiredAt: time.Now().UTC()}
	return true, userID
}

// Release removes the lock on path if userID holds it.
func (t *LockTable) Release(path, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	info, held := t.locks[path]
	if !held || info.HolderID != userID {
		return false
	}
	delete(t.locks, path)
	return true
}

// ReleaseAll drops every lock held by userID and returns the released
// paths. Called when a user leaves or disconnects.
func (t *LockTable) ReleaseAll(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var released []string
	for path, info := range t.locks {
		if info.HolderID == userID {
			delete(t.locks, path)
			released = append(released, path)
		}
	}
	return released
}

// Snapshot returns a copy of the current lock state.
func (t *LockTable) Snapshot() map[string]models.LockInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]models.LockInfo, len(t.locks))
	for path, info := range t.locks {
		out[path] = info
	}
	return out
}

// Len returns the number of held locks.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
