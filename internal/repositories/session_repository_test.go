package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionRepo(t *testing.T) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisSessionRepository(rdb, "test-secret", time.Hour), mr
}

func TestSessionIssueVerifyRevoke(t *testing.T) {
	ctx := context.Background()
	r, mr := newSessionRepo(t)

	s, err := r.Issue(ctx, "acc1")
	require.NoError(t, err)
	assert.Equal(t, "acc1", s.AccountID)
	assert.NotEmpty(t, s.Token)
	assert.True(t, mr.Exists(sessionKeyPrefix+s.ID))

	claims, err := r.Verify(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "acc1", claims.AccountID)
	assert.Equal(t, s.ID, claims.ID)

	require.NoError(t, r.Revoke(ctx, s.Token))
	_, err = r.Verify(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, r.Revoke(ctx, s.Token), ErrSessionExpired)
}

func TestSessionExpiresWithRedisTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newSessionRepo(t)

	s, err := r.Issue(ctx, "acc1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = r.Verify(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionRejectsForeignAndExpiredTokens(t *testing.T) {
	ctx := context.Background()
	r, _ := newSessionRepo(t)

	other := NewRedisSessionRepository(nil, "other-secret", time.Hour)
	s, err := other.Issue(ctx, "acc1")
	require.NoError(t, err)
	_, err = r.Verify(ctx, s.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = r.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrSessionExpired)

	r.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := r.Issue(ctx, "acc1")
	require.NoError(t, err)
	_, err = r.Verify(ctx, old.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestStatelessSessions(t *testing.T) {
	ctx := context.Background()
	r := NewRedisSessionRepository(nil, "test-secret", 0)
	assert.Equal(t, DefaultSessionTTL, r.ttl)

	s, err := r.Issue(ctx, "acc1")
	require.NoError(t, err)
	_, err = r.Verify(ctx, s.Token)
	require.NoError(t, err)
	require.NoError(t, r.Revoke(ctx, s.Token))
}

func TestSessionRedisDown(t *testing.T) {
	ctx := context.Background()
	r, mr := newSessionRepo(t)
	mr.Close()

	_, err := r.Issue(ctx, "acc1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
