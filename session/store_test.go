package session

import (
	"context"
	"testing"
	"time"

	"github.com/maplecart/maplecart/services/hashing"
	"github.com/maplecart/maplecart/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := testutils.SetupTestDB(t, &Session{})
	return NewStore(db, nil)
}

func seedSession(t *testing.T, store *Store, userID, rawToken string) *Session {
	t.Helper()

	sess := &Session{
		UserID:           userID,
		RefreshTokenHash: hashing.HashToken(rawToken),
		IP:               "192.0.2.1",
		UserAgent:        "test-agent",
		ExpiresAt:        time.Now().Add(time.Hour),
		LastSeenAt:       time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), sess))
	return sess
}

func TestCreateAndFindByRefreshHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := seedSession(t, store, "user-1", "raw-token-1")

	found, err := store.FindByRefreshHash(ctx, hashing.HashToken("raw-token-1"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "user-1", found.UserID)

	_, err = store.FindByRefreshHash(ctx, hashing.HashToken("no-such-token"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRotateMovesHashForward(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := seedSession(t, store, "user-1", "old-token")
	oldHash := hashing.HashToken("old-token")
	newHash := hashing.HashToken("new-token")

	err := store.Rotate(ctx, sess.ID, oldHash, newHash, "jti-2")
	require.NoError(t, err)

	rotated, err := store.FindByRefreshHash(ctx, newHash)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, rotated.ID)
	require.NotNil(t, rotated.PreviousRefreshTokenHash)
	assert.Equal(t, oldHash, *rotated.PreviousRefreshTokenHash)
	assert.Equal(t, "jti-2", rotated.CurrentJTI)

	// The old hash no longer matches as current, but is findable as prior.
	_, err = store.FindByRefreshHash(ctx, oldHash)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	prior, err := store.FindByPreviousHash(ctx, oldHash)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, prior.ID)
}

func TestRotateLoserGetsSuperseded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := seedSession(t, store, "user-1", "old-token")
	oldHash := hashing.HashToken("old-token")

	require.NoError(t, store.Rotate(ctx, sess.ID, oldHash, hashing.HashToken("winner"), "jti-a"))

	err := store.Rotate(ctx, sess.ID, oldHash, hashing.HashToken("loser"), "jti-b")
	assert.ErrorIs(t, err, ErrTokenSuperseded)
}

func TestRevokeIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := seedSession(t, store, "user-1", "raw-token")

	require.NoError(t, store.Revoke(ctx, sess.ID))

	revoked, err := store.GetForUser(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	firstRevokedAt := *revoked.RevokedAt

	require.NoError(t, store.Revoke(ctx, sess.ID))

	again, err := store.GetForUser(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, firstRevokedAt.Unix(), again.RevokedAt.Unix(), "second revoke must not move the timestamp")
}

func TestRevokeAllForUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSession(t, store, "user-1", "token-a")
	seedSession(t, store, "user-1", "token-b")
	other := seedSession(t, store, "user-2", "token-c")

	count, err := store.RevokeAllForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	remaining, err := store.ListActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	untouched, err := store.GetForUser(ctx, "user-2", other.ID)
	require.NoError(t, err)
	assert.Nil(t, untouched.RevokedAt)
}

func TestQuarantineBlocksLineage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := seedSession(t, store, "user-1", "raw-token")
	require.NoError(t, store.Quarantine(ctx, sess.ID))

	got, err := store.GetForUser(ctx, "user-1", sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Quarantined)
	assert.NotNil(t, got.RevokedAt)
	assert.False(t, got.Usable())
}

func TestListActiveForUserExcludesDeadSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	live := seedSession(t, store, "user-1", "token-live")

	revoked := seedSession(t, store, "user-1", "token-revoked")
	require.NoError(t, store.Revoke(ctx, revoked.ID))

	expired := &Session{
		UserID:           "user-1",
		RefreshTokenHash: hashing.HashToken("token-expired"),
		ExpiresAt:        time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.Create(ctx, expired))

	sessions, err := store.ListActiveForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, live.ID, sessions[0].ID)
}

func TestGetForUserScopesOwnership(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := seedSession(t, store, "user-1", "raw-token")

	_, err := store.GetForUser(ctx, "user-2", sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestUsable(t *testing.T) {
	now := time.Now()
	revokedAt := now.Add(-time.Minute)

	tests := []struct {
		name string
		sess Session
		want bool
	}{
		{"live", Session{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", Session{ExpiresAt: now.Add(-time.Minute)}, false},
		{"revoked", Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt}, false},
		{"quarantined", Session{ExpiresAt: now.Add(time.Hour), Quarantined: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sess.Usable())
		})
	}
}
