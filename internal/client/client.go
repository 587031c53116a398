// Package client bundles everything one signed-in session needs: the gateway,
// its entity cache, the mutation coordinator, feed views and entity views.
package client

import (
	"context"
	"strings"
	"sync"

	"github.com/anonto42/nano-midea/client/internal/cache"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/models"
	"github.com/anonto42/nano-midea/client/internal/mutation"
)

// Feed names
const (
	FeedRecent    = "recent"
	FeedPosts     = "posts"
	FeedUsers     = "users"
	FeedSaved     = "saved"
	FeedUserPosts = "user-posts"
)

// mainView names the feed views a Client keeps for its session
const mainView = "main"

type closer interface{ Close() }

// Client is the per-session state
type Client struct {
	gw      *gateway.Client
	cache   *cache.Cache
	co      *mutation.Coordinator
	notices *mutation.NoticeBoard

	mu    sync.Mutex
	views map[string]any
	subs  map[string]func()
	feeds map[string]closer
}

// New builds a session bundle around gw
func New(gw *gateway.Client) *Client {
	c := cache.New()
	notices := mutation.NewNoticeBoard(0)
	return &Client{
		gw:      gw,
		cache:   c,
		co:      mutation.NewCoordinator(gw, c, notices),
		notices: notices,
		views:   make(map[string]any),
		subs:    make(map[string]func()),
		feeds:   make(map[string]closer),
	}
}

// Gateway returns the underlying gateway client
func (c *Client) Gateway() *gateway.Client { return c.gw }

// Cache returns the session's entity cache
func (c *Client) Cache() *cache.Cache { return c.cache }

// Notices returns the board collecting failure notices
func (c *Client) Notices() *mutation.NoticeBoard { return c.notices }

// Session returns the active session or nil
func (c *Client) Session() *models.Session { return c.gw.Session() }

// Close releases every view and feed and stops background refetches
func (c *Client) Close() {
	c.mu.Lock()
	subs, feeds := c.subs, c.feeds
	c.subs, c.feeds, c.views = make(map[string]func()), make(map[string]closer), make(map[string]any)
	c.mu.Unlock()

	for _, cancel := range subs {
		cancel()
	}
	for _, f := range feeds {
		f.Close()
	}
	c.cache.Close()
}

// SignUp creates an account and signs it in
func (c *Client) SignUp(ctx context.Context, form models.SignupForm) (*models.User, error) {
	return c.co.SignUp(ctx, form)
}

// SignIn starts a session
func (c *Client) SignIn(ctx context.Context, form models.SigninForm) (*models.User, error) {
	return c.co.SignIn(ctx, form)
}

// SignOut ends the session and forgets every view
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.co.SignOut(ctx); err != nil {
		return err
	}
	c.Close()
	return nil
}

// CurrentUser returns the signed-in user, from cache when possible
func (c *Client) CurrentUser(ctx context.Context) (models.User, error) {
	v, _, err := cache.Get(ctx, c.cache, cache.CurrentUserKey, c.fetchCurrentUser)
	return v, err
}

// User returns a user by id
func (c *Client) User(ctx context.Context, id string) (models.User, error) {
	v, _, err := cache.Get(ctx, c.cache, cache.UserKey(id), c.fetchUser(id))
	return v, err
}

// Post returns a post by id
func (c *Client) Post(ctx context.Context, id string) (models.Post, error) {
	v, _, err := cache.Get(ctx, c.cache, cache.PostKey(id), c.fetchPost(id))
	return v, err
}

// Search returns posts whose caption contains term
func (c *Client) Search(ctx context.Context, term string) (models.Page[models.Post], error) {
	term = strings.TrimSpace(term)
	v, _, err := cache.Get(ctx, c.cache, cache.Key(cache.SearchPrefix, strings.ToLower(term)), func(ctx context.Context) (models.Page[models.Post], error) {
		return c.gw.SearchPosts(ctx, term)
	})
	return v, err
}

func (c *Client) fetchCurrentUser(ctx context.Context) (models.User, error) {
	u, err := c.gw.GetCurrentUser(ctx)
	if err != nil {
		return models.User{}, err
	}
	return *u, nil
}

func (c *Client) fetchUser(id string) func(context.Context) (models.User, error) {
	return func(ctx context.Context) (models.User, error) {
		u, err := c.gw.GetUserByID(ctx, id)
		if err != nil {
			return models.User{}, err
		}
		return *u, nil
	}
}

func (c *Client) fetchPost(id string) func(context.Context) (models.Post, error) {
	return func(ctx context.Context) (models.Post, error) {
		p, err := c.gw.GetPostByID(ctx, id)
		if err != nil {
			return models.Post{}, err
		}
		return *p, nil
	}
}
