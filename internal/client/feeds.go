package client

import (
	"context"

	"github.com/anonto42/nano-midea/client/internal/cache"
	"github.com/anonto42/nano-midea/client/internal/feed"
	"github.com/anonto42/nano-midea/client/internal/models"
)

func feedFor[T any](c *Client, name string, fetch feed.FetchFunc[T], opts ...feed.Option) *feed.Feed[T] {
	key := cache.FeedKey(name, mainView)
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.feeds[key].(*feed.Feed[T]); ok {
		return f
	}
	f := feed.New(c.cache, name, mainView, fetch, opts...)
	c.feeds[key] = f
	return f
}

// RecentPosts is the capped feed of the newest posts
func (c *Client) RecentPosts() *feed.Feed[models.Post] {
	return feedFor(c, FeedRecent, func(ctx context.Context, _ string) (models.Page[models.Post], error) {
		return c.gw.GetRecentPosts(ctx)
	}, feed.Capped())
}

// Posts is the infinite feed of all posts
func (c *Client) Posts() *feed.Feed[models.Post] {
	return feedFor(c, FeedPosts, c.gw.ListPosts)
}

// Users is the infinite user directory
func (c *Client) Users() *feed.Feed[models.User] {
	return feedFor(c, FeedUsers, c.gw.ListUsers)
}

// UserPosts is the infinite feed of one user's posts
func (c *Client) UserPosts(userID string) *feed.Feed[models.Post] {
	return feedFor(c, FeedUserPosts+":"+userID, func(ctx context.Context, cursor string) (models.Page[models.Post], error) {
		return c.gw.ListUserPosts(ctx, userID, cursor)
	})
}

// Saved is the infinite feed of the current user's saves rows
func (c *Client) Saved() *feed.Feed[models.SavedPost] {
	return feedFor(c, FeedSaved, func(ctx context.Context, cursor string) (models.Page[models.SavedPost], error) {
		me, err := c.CurrentUser(ctx)
		if err != nil {
			return models.Page[models.SavedPost]{}, err
		}
		return c.gw.ListSavedPosts(ctx, me.ID, cursor)
	})
}
