package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/client/internal/feed"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/gateway/gatewaytest"
	"github.com/anonto42/nano-midea/client/internal/models"
	"github.com/anonto42/nano-midea/client/internal/repositories"
)

func newRegistry(t *testing.T) (*gatewaytest.Backend, *Registry) {
	t.Helper()
	b := gatewaytest.New()
	r := NewRegistry(func() *gateway.Client {
		return b.Client(gateway.Options{Timeout: time.Second, AvatarBaseURL: "https://avatars.test/initials"})
	}, 0)
	t.Cleanup(r.Close)
	return b, r
}

func signUp(t *testing.T, r *Registry, username string) *Client {
	t.Helper()
	c := r.Anonymous()
	_, err := c.SignUp(context.Background(), models.SignupForm{
		Name: "User " + username, Username: username, Email: username + "@example.com", Password: "12345678",
	})
	require.NoError(t, err)
	r.Add(c)
	return c
}

func TestRegistryTracksSessions(t *testing.T) {
	_, r := newRegistry(t)
	c := signUp(t, r, "ann")
	token := c.Session().Token

	got, ok := r.Lookup(token)
	require.True(t, ok)
	assert.Same(t, c, got)

	require.NoError(t, c.SignOut(context.Background()))
	r.Remove(token)
	_, ok = r.Lookup(token)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistryRestore(t *testing.T) {
	_, r := newRegistry(t)
	c := signUp(t, r, "ann")
	token := c.Session().Token
	r.mu.Lock()
	delete(r.clients, token)
	r.mu.Unlock()

	restored, err := r.Restore(context.Background(), token)
	require.NoError(t, err)
	me, err := restored.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ann", me.Username)

	_, err = r.Restore(context.Background(), "bogus")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestRegistryRestoreDropsRevokedSession(t *testing.T) {
	b, r := newRegistry(t)
	c := signUp(t, r, "ann")
	token := c.Session().Token
	ctx := context.Background()

	_, err := r.Restore(ctx, token)
	require.NoError(t, err)

	require.NoError(t, b.Accounts.DeleteSession(ctx, token))
	_, err = r.Restore(ctx, token)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Zero(t, r.Len())
}

func TestRegistryRestoreKeepsSessionWhenBackendDown(t *testing.T) {
	b, r := newRegistry(t)
	c := signUp(t, r, "ann")
	token := c.Session().Token

	b.FailNext(gatewaytest.OpGetAccount, repositories.ErrUnavailable)
	_, err := r.Restore(context.Background(), token)
	assert.ErrorIs(t, err, gateway.ErrServiceUnavailable)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRestoreDropsExpiredSession(t *testing.T) {
	_, r := newRegistry(t)
	c := signUp(t, r, "ann")
	r.now = func() time.Time { return c.Session().ExpiresAt.Add(time.Second) }

	_, err := r.Restore(context.Background(), c.Session().Token)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Zero(t, r.Len())
}

func TestRegistrySweep(t *testing.T) {
	ctx := context.Background()

	t.Run("idle", func(t *testing.T) {
		_, r := newRegistry(t)
		signUp(t, r, "ann")
		signUp(t, r, "bob")

		assert.Zero(t, r.Sweep(ctx))
		assert.Equal(t, 2, r.Len())

		r.now = func() time.Time { return time.Now().Add(DefaultIdleTimeout + time.Minute) }
		assert.Equal(t, 2, r.Sweep(ctx))
		assert.Zero(t, r.Len())
	})

	t.Run("revoked", func(t *testing.T) {
		b, r := newRegistry(t)
		ann := signUp(t, r, "ann")
		signUp(t, r, "bob")

		require.NoError(t, b.Accounts.DeleteSession(ctx, ann.Session().Token))
		assert.Equal(t, 1, r.Sweep(ctx))
		assert.Equal(t, 1, r.Len())
		_, ok := r.Lookup(ann.Session().Token)
		assert.False(t, ok)
	})

	t.Run("recently used", func(t *testing.T) {
		_, r := newRegistry(t)
		c := signUp(t, r, "ann")
		start := time.Now()
		r.now = func() time.Time { return start.Add(DefaultIdleTimeout - time.Minute) }
		_, err := r.Restore(ctx, c.Session().Token)
		require.NoError(t, err)

		r.now = func() time.Time { return start.Add(DefaultIdleTimeout + time.Minute) }
		assert.Zero(t, r.Sweep(ctx))
		assert.Equal(t, 1, r.Len())
	})
}

func TestPostLifecycleThroughFeeds(t *testing.T) {
	_, r := newRegistry(t)
	c := signUp(t, r, "ann")
	ctx := context.Background()

	recent := c.RecentPosts()
	require.NoError(t, recent.FetchNext(ctx))
	assert.Empty(t, recent.Items())

	p, err := c.CreatePost(ctx, models.NewPostForm{
		Caption: "harbour at dusk", Location: "Porto", Tags: "sea", File: &models.Upload{Name: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)
	c.Cache().Wait()

	items := recent.Items()
	require.Len(t, items, 1)
	assert.Equal(t, p.ID, items[0].ID)
	assert.Same(t, recent, c.RecentPosts())

	liked, err := c.ToggleLike(ctx, p.ID)
	require.NoError(t, err)
	me, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{me.ID}, liked.Likes)
	c.Cache().Wait()

	view, err := c.PostView(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{me.ID}, view.Value().Likes)
	assert.Equal(t, []string{me.ID}, recent.Items()[0].Likes)

	page, err := c.Search(ctx, "HARBOUR")
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	require.NoError(t, c.DeletePost(ctx, p.ID))
	c.Cache().Wait()
	assert.Empty(t, recent.Items())

	_, err = c.Post(ctx, p.ID)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestOnlyCreatorChangesPost(t *testing.T) {
	b, r := newRegistry(t)
	ann := signUp(t, r, "ann")
	bob := signUp(t, r, "bob")
	ctx := context.Background()

	p, err := ann.CreatePost(ctx, models.NewPostForm{
		Caption: "harbour at dusk", Location: "Porto", File: &models.Upload{Name: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)
	updates, deletes := b.Calls(gatewaytest.OpUpdateDoc), b.Calls(gatewaytest.OpDeleteDoc)

	_, err = bob.UpdatePost(ctx, models.UpdatePostForm{PostID: p.ID, Caption: "mine now", Location: "Porto"})
	assert.ErrorIs(t, err, gateway.ErrForbidden)
	err = bob.DeletePost(ctx, p.ID)
	assert.ErrorIs(t, err, gateway.ErrForbidden)

	assert.Equal(t, updates, b.Calls(gatewaytest.OpUpdateDoc))
	assert.Equal(t, deletes, b.Calls(gatewaytest.OpDeleteDoc))
	assert.Equal(t, 1, b.FileCount())

	got, err := ann.Post(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "harbour at dusk", got.Caption)
	assert.Empty(t, bob.Notices().Drain())
}

func TestSaveAndSavedFeed(t *testing.T) {
	b, r := newRegistry(t)
	c := signUp(t, r, "ann")
	ctx := context.Background()
	b.Put(models.CollectionPosts, "P2", map[string]any{"creator": "someone"})

	s, err := c.ToggleSave(ctx, "P2")
	require.NoError(t, err)
	assert.True(t, s.Saved())
	c.Cache().Wait()

	saved := c.Saved()
	require.NoError(t, saved.FetchNext(ctx))
	require.Len(t, saved.Items(), 1)
	assert.Equal(t, "P2", saved.Items()[0].Post)

	s, err = c.ToggleSave(ctx, "P2")
	require.NoError(t, err)
	assert.False(t, s.Saved())
	c.Cache().Wait()
	assert.Empty(t, saved.Items())
	assert.Zero(t, b.Count(models.CollectionSaves))
}

func TestFollowAcrossSessions(t *testing.T) {
	_, r := newRegistry(t)
	ann := signUp(t, r, "ann")
	bob := signUp(t, r, "bob")
	ctx := context.Background()
	bobUser, err := bob.CurrentUser(ctx)
	require.NoError(t, err)

	users := ann.Users()
	require.NoError(t, users.FetchNext(ctx))

	me, err := ann.ToggleFollow(ctx, bobUser.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bobUser.ID}, me.Following)

	got, err := ann.User(ctx, bobUser.ID)
	require.NoError(t, err)
	annUser, err := ann.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{annUser.ID}, got.FollowedBy)

	snap, _ := users.Snapshot()
	assert.NotEqual(t, feed.Idle, snap.State)
}

func TestUpdateProfileUsesCurrentUser(t *testing.T) {
	_, r := newRegistry(t)
	c := signUp(t, r, "ann")
	ctx := context.Background()

	u, err := c.UpdateProfile(ctx, models.UpdateProfileForm{Name: "Ann Marie", Username: "annm", Bio: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "annm", u.Username)

	view, err := c.CurrentUserView(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", view.Value().Bio)
	assert.Contains(t, view.Value().ImageURL, "name=")
}
