package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkazlausk/collabsync/internal/merge"
	"github.com/mkazlausk/collabsync/internal/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(merge.NewResolver(), 0, nil)
}

func TestJoinOrCreate_NewSession(t *testing.T) {
	r := newTestRegistry(t)

	snap, isNew := r.JoinOrCreate("c1", "main.go", "alice", "hello")

	assert.True(t, isNew)
	assert.NotEmpty(t, snap.SessionID)
	assert.Equal(t, "c1", snap.ContainerID)
	assert.Equal(t, "main.go", snap.FilePath)
	assert.Equal(t, "hello", snap.Content)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, []string{"alice"}, snap.Users)

	history, total, err := r.History(snap.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, history, 1)
	assert.Equal(t, models.OperationCreate, history[0].Operation)
	assert.Equal(t, 1, history[0].Version)
}

func TestJoinOrCreate_ExistingSessionIgnoresSeed(t *testing.T) {
	r := newTestRegistry(t)

	first, _ := r.JoinOrCreate("c1", "main.go", "alice", "original")
	second, isNew := r.JoinOrCreate("c1", "main.go", "bob", "other seed")

	assert.False(t, isNew)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "original", second.Content)
	assert.Equal(t, []string{"alice", "bob"}, second.Users)
}

func TestJoinOrCreate_DistinctFilesGetDistinctSessions(t *testing.T) {
	r := newTestRegistry(t)

	a, _ := r.JoinOrCreate("c1", "a.go", "alice", "")
	b, _ := r.JoinOrCreate("c1", "b.go", "alice", "")
	c, _ := r.JoinOrCreate("c2", "a.go", "alice", "")

	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.NotEqual(t, a.SessionID, c.SessionID)
}

func TestApplyUpdate_MatchingVersion(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "main.go", "alice", "v1 content")

	res, err := r.ApplyUpdate(snap.SessionID, "alice", 1, "v2 content")
	require.NoError(t, err)

	assert.Equal(t, UpdateApplied, res.Status)
	assert.Equal(t, 2, res.Version)
	assert.Equal(t, "v2 content", res.Content)
	assert.Nil(t, res.Resolution)

	history, total, err := r.History(snap.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, models.OperationUpdate, history[1].Operation)
}

func TestApplyUpdate_VersionIsMonotonic(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "main.go", "alice", "")

	for i := 1; i <= 5; i++ {
		res, err := r.ApplyUpdate(snap.SessionID, "alice", i, "content")
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Version)
	}

	history, _, err := r.History(snap.SessionID, 0)
	require.NoError(t, err)
	for i, entry := range history {
		assert.Equal(t, i+1, entry.Version)
	}
}

func TestApplyUpdate_StaleVersionAutoResolves(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "notes.txt", "alice", "a\nb\nc")

	// Alice moves the session to version 2.
	_, err := r.ApplyUpdate(snap.SessionID, "alice", 1, "a\nB\nc")
	require.NoError(t, err)

	// Bob still thinks the version is 1; his change touches a different line.
	res, err := r.ApplyUpdate(snap.SessionID, "bob", 1, "a\nb\nC")
	require.NoError(t, err)

	assert.Equal(t, UpdateAutoResolved, res.Status)
	assert.Equal(t, 3, res.Version)
	assert.Equal(t, "a\nB\nC", res.Content)
	require.NotNil(t, res.Resolution)
	assert.True(t, res.Resolution.Metadata.AutoResolved)
	assert.Equal(t, models.StrategySmartMerge, res.Resolution.Strategy)

	history, _, err := r.History(snap.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.OperationMerge, history[len(history)-1].Operation)
}

func TestApplyUpdate_StaleVersionConflictLeavesStateUntouched(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "notes.txt", "alice", "x = 1")

	_, err := r.ApplyUpdate(snap.SessionID, "alice", 1, "x = 2")
	require.NoError(t, err)

	res, err := r.ApplyUpdate(snap.SessionID, "bob", 1, "x = 3")
	require.NoError(t, err)

	assert.Equal(t, UpdateConflict, res.Status)
	assert.Equal(t, 2, res.Version)
	assert.Equal(t, "x = 2", res.Content)
	require.NotNil(t, res.Resolution)
	assert.False(t, res.Resolution.Metadata.AutoResolved)
	assert.Equal(t, models.StrategyManual, res.Resolution.Strategy)
	assert.Contains(t, res.Resolution.ResolvedContent, "<<<<<<< LOCAL")

	// Session content and version are unchanged after a conflict outcome.
	after, err := r.Snapshot(snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Version)
	assert.Equal(t, "x = 2", after.Content)
}

func TestResolveManually_AlwaysApplies(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "notes.txt", "alice", "x = 1")

	_, err := r.ApplyUpdate(snap.SessionID, "alice", 1, "x = 2")
	require.NoError(t, err)

	version, err := r.ResolveManually(snap.SessionID, "bob", "x = 42")
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	after, err := r.Snapshot(snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "x = 42", after.Content)

	history, _, err := r.History(snap.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.OperationConflictResolution, history[len(history)-1].Operation)
}

func TestLeave_DestroysOnLastUser(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "main.go", "alice", "content")
	r.JoinOrCreate("c1", "main.go", "bob", "")

	res, err := r.Leave(snap.SessionID, "alice")
	require.NoError(t, err)
	assert.False(t, res.Destroyed)
	assert.Equal(t, 1, res.UserCount)

	res, err = r.Leave(snap.SessionID, "bob")
	require.NoError(t, err)
	assert.True(t, res.Destroyed)
	assert.Equal(t, 0, res.UserCount)
	assert.Equal(t, "c1", res.ContainerID)
	assert.Equal(t, "main.go", res.FilePath)
	assert.Equal(t, "content", res.Content)

	_, err = r.Snapshot(snap.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLeave_ReleasesHeldLocks(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "main.go", "alice", "")
	r.JoinOrCreate("c1", "main.go", "bob", "")

	granted, _, err := r.TryAcquireLock(snap.SessionID, "main.go", "alice")
	require.NoError(t, err)
	require.True(t, granted)

	res, err := r.Leave(snap.SessionID, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, res.ReleasedLocks)

	// Bob can immediately take the lock.
	granted, _, err = r.TryAcquireLock(snap.SessionID, "main.go", "bob")
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestRejoinAfterDestroyStartsFresh(t *testing.T) {
	r := newTestRegistry(t)
	snap, _ := r.JoinOrCreate("c1", "main.go", "alice", "old")
	_, err := r.ApplyUpdate(snap.SessionID, "alice", 1, "newer")
	require.NoError(t, err)

	_, err = r.Leave(snap.SessionID, "alice")
	require.NoError(t, err)

	fresh, isNew := r.JoinOrCreate("c1", "main.go", "alice", "seeded")
	assert.True(t, isNew)
	assert.NotEqual(t, snap.SessionID, fresh.SessionID)
	assert.Equal(t, 1, fresh.Version)
	assert.Equal(t, "seeded", fresh.Content)
}

func TestHistory_LimitAndTrim(t *testing.T) {
	r := NewRegistry(merge.NewResolver(), 3, nil)
	snap, _ := r.JoinOrCreate("c1", "main.go", "alice", "")

	for i := 1; i <= 5; i++ {
		_, err := r.ApplyUpdate(snap.SessionID, "alice", i, "content")
		require.NoError(t, err)
	}

	// Retention cap trims the oldest entries.
	history, total, err := r.History(snap.SessionID, 0)
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[0].Version)
	assert.Equal(t, 6, history[2].Version)

	// A request limit below the retained count narrows further.
	history, _, err = r.History(snap.SessionID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 5, history[0].Version)
}

func TestRegistry_UnknownSession(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.ApplyUpdate("missing", "alice", 1, "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.Leave("missing", "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = r.TryAcquireLock("missing", "p", "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.ReleaseLock("missing", "p", "alice")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = r.History("missing", 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = r.ResolveManually("missing", "alice", "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSummaries_OrderedByCreation(t *testing.T) {
	r := newTestRegistry(t)
	a, _ := r.JoinOrCreate("c1", "a.go", "alice", "")
	b, _ := r.JoinOrCreate("c1", "b.go", "alice", "")
	r.JoinOrCreate("c1", "a.go", "bob", "")

	summaries := r.Summaries()
	require.Len(t, summaries, 2)

	ids := []string{summaries[0].SessionID, summaries[1].SessionID}
	assert.Contains(t, ids, a.SessionID)
	assert.Contains(t, ids, b.SessionID)
	for _, s := range summaries {
		if s.SessionID == a.SessionID {
			assert.Equal(t, 2, s.UserCount)
		}
	}
	assert.True(t, !summaries[1].CreatedAt.Before(summaries[0].CreatedAt))
}
