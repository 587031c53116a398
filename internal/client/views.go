package client

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/client/internal/cache"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/models"
	"github.com/anonto42/nano-midea/client/internal/mutation"
)

// viewFor returns the session's view of key, creating it from the cache on
// first use. The view follows every value the cache later stores for key.
func viewFor[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (*mutation.View[T], error) {
	c.mu.Lock()
	if v, ok := c.views[key].(*mutation.View[T]); ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	value, _, err := cache.Get(ctx, c.cache, key, fetch)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[key].(*mutation.View[T]); ok {
		return v, nil
	}
	v := mutation.NewView(value)
	cancel := c.cache.Subscribe(key, func(x any) {
		if t, ok := x.(T); ok {
			v.Set(t)
		}
	})
	c.views[key] = v
	c.subs[key] = cancel
	return v, nil
}

// dropView forgets the view of key. Its cache entry goes with it.
func (c *Client) dropView(key string) {
	c.mu.Lock()
	cancel, ok := c.subs[key]
	delete(c.subs, key)
	delete(c.views, key)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// CurrentUserView is the signed-in user as shown locally
func (c *Client) CurrentUserView(ctx context.Context) (*mutation.View[models.User], error) {
	return viewFor(ctx, c, cache.CurrentUserKey, c.fetchCurrentUser)
}

// PostView is one post as shown locally
func (c *Client) PostView(ctx context.Context, id string) (*mutation.View[models.Post], error) {
	return viewFor(ctx, c, cache.PostKey(id), c.fetchPost(id))
}

// SaveView is whether the current user saved the post
func (c *Client) SaveView(ctx context.Context, postID string) (*mutation.View[mutation.SaveState], error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return viewFor(ctx, c, cache.SavedKey(me.ID, postID), func(ctx context.Context) (mutation.SaveState, error) {
		s := mutation.SaveState{PostID: postID, UserID: me.ID}
		row, err := c.gw.FindSavedPost(ctx, postID, me.ID)
		if err != nil {
			return s, err
		}
		if row != nil {
			s.RecordID = row.ID
		}
		return s, nil
	})
}

// ToggleLike likes or unlikes a post as the current user
func (c *Client) ToggleLike(ctx context.Context, postID string) (models.Post, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return models.Post{}, err
	}
	post, err := c.PostView(ctx, postID)
	if err != nil {
		return models.Post{}, err
	}
	return c.co.ToggleLike(ctx, post, me.ID)
}

// ToggleSave saves or unsaves a post as the current user
func (c *Client) ToggleSave(ctx context.Context, postID string) (mutation.SaveState, error) {
	save, err := c.SaveView(ctx, postID)
	if err != nil {
		return mutation.SaveState{}, err
	}
	return c.co.ToggleSave(ctx, save)
}

// Follow makes the current user follow userID
func (c *Client) Follow(ctx context.Context, userID string) (models.User, error) {
	me, err := c.CurrentUserView(ctx)
	if err != nil {
		return models.User{}, err
	}
	return c.co.Follow(ctx, me, userID)
}

// Unfollow makes the current user stop following userID
func (c *Client) Unfollow(ctx context.Context, userID string) (models.User, error) {
	me, err := c.CurrentUserView(ctx)
	if err != nil {
		return models.User{}, err
	}
	return c.co.Unfollow(ctx, me, userID)
}

// ToggleFollow follows or unfollows userID
func (c *Client) ToggleFollow(ctx context.Context, userID string) (models.User, error) {
	me, err := c.CurrentUserView(ctx)
	if err != nil {
		return models.User{}, err
	}
	return c.co.ToggleFollow(ctx, me, userID)
}

// UpdateProfile edits the current user's profile
func (c *Client) UpdateProfile(ctx context.Context, form models.UpdateProfileForm) (models.User, error) {
	me, err := c.CurrentUserView(ctx)
	if err != nil {
		return models.User{}, err
	}
	cur := me.Value()
	form.UserID = cur.ID
	if form.ImageURL == "" {
		form.ImageURL, form.ImageID = cur.ImageURL, cur.ImageID
	}
	return c.co.UpdateProfile(ctx, me, form)
}

// CreatePost publishes a post as the current user
func (c *Client) CreatePost(ctx context.Context, form models.NewPostForm) (*models.Post, error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	form.UserID = me.ID
	return c.co.CreatePost(ctx, form)
}

// ownPost returns the view of a post the current user created
func (c *Client) ownPost(ctx context.Context, op, postID string) (*mutation.View[models.Post], error) {
	me, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	post, err := c.PostView(ctx, postID)
	if err != nil {
		return nil, err
	}
	if creator := post.Value().Creator; creator != me.ID {
		return nil, gateway.Reject(op, gateway.ErrForbidden, fmt.Errorf("post %s belongs to %s", postID, creator))
	}
	return post, nil
}

// UpdatePost edits a post the current user created
func (c *Client) UpdatePost(ctx context.Context, form models.UpdatePostForm) (models.Post, error) {
	post, err := c.ownPost(ctx, "updatePost", form.PostID)
	if err != nil {
		return models.Post{}, err
	}
	if cur := post.Value(); form.ImageURL == "" {
		form.ImageURL, form.ImageID = cur.ImageURL, cur.ImageID
	}
	return c.co.UpdatePost(ctx, post, form)
}

// DeletePost removes a post the current user created, and its image
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	post, err := c.ownPost(ctx, "deletePost", postID)
	if err != nil {
		return err
	}
	if err := c.co.DeletePost(ctx, post); err != nil {
		return err
	}
	c.dropView(cache.PostKey(postID))
	return nil
}
