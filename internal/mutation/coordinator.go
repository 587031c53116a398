// Package mutation runs every write as an optimistic update: the local view
// changes first, the backend write follows, and the cache is invalidated on
// success or the view reverted on failure.
package mutation

import (
	"context"
	"errors"
	"slices"

	"github.com/anonto42/nano-midea/client/internal/cache"
	"github.com/anonto42/nano-midea/client/internal/gateway"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// Gateway is the set of backend writes the coordinator dispatches
type Gateway interface {
	CreateUserAccount(ctx context.Context, form models.SignupForm) (*models.User, error)
	SignIn(ctx context.Context, form models.SigninForm) (*models.Session, error)
	GetCurrentUser(ctx context.Context) (*models.User, error)
	SignOut(ctx context.Context) error

	CreatePost(ctx context.Context, form models.NewPostForm) (*models.Post, error)
	UpdatePost(ctx context.Context, form models.UpdatePostForm) (*models.Post, error)
	DeletePost(ctx context.Context, postID, imageID string) error
	LikePost(ctx context.Context, postID string, likes []string) (*models.Post, error)
	SavePost(ctx context.Context, postID, userID string) (*models.SavedPost, error)
	DeleteSavedPost(ctx context.Context, savedRecordID string) error

	GetFollowGraph(ctx context.Context, userID string) (*gateway.FollowGraph, error)
	UpdateFollowing(ctx context.Context, userID string, following []string) (*models.User, error)
	UpdateFollowedBy(ctx context.Context, userID string, followedBy []string) (*models.User, error)
	UpdateProfile(ctx context.Context, form models.UpdateProfileForm) (*models.User, error)
}

// Coordinator runs mutations against one gateway and cache
type Coordinator struct {
	gw       Gateway
	cache    *cache.Cache
	notifier Notifier
}

// NewCoordinator returns a coordinator reporting failures to n
func NewCoordinator(gw Gateway, c *cache.Cache, n Notifier) *Coordinator {
	if n == nil {
		n = NotifierFunc(func(Notice) {})
	}
	return &Coordinator{gw: gw, cache: c, notifier: n}
}

func (co *Coordinator) invalidate(keys, prefixes []string) {
	co.cache.Invalidate(keys...)
	for _, p := range prefixes {
		co.cache.InvalidatePrefix(p)
	}
}

// SaveState is whether a user has saved a post. RecordID is the saves row,
// empty when not saved.
type SaveState struct {
	PostID   string `json:"post_id"`
	UserID   string `json:"user_id"`
	RecordID string `json:"record_id"`
}

// Saved reports whether the post is saved
func (s SaveState) Saved() bool { return s.RecordID != "" }

// pendingRecord marks an optimistic save whose row does not exist yet
const pendingRecord = "pending"

// ToggleLike adds userID to the post's likes, or removes it if present
func (co *Coordinator) ToggleLike(ctx context.Context, post *View[models.Post], userID string) (models.Post, error) {
	return Run(ctx, co, Mutation[models.Post]{
		Action: "Like post",
		View:   post,
		Apply: func(p models.Post) models.Post {
			p = p.Clone()
			p.Likes = toggle(p.Likes, userID)
			return p
		},
		Dispatch: func(ctx context.Context, _, next models.Post) (models.Post, error) {
			p, err := co.gw.LikePost(ctx, next.ID, next.Likes)
			if err != nil {
				return models.Post{}, err
			}
			return *p, nil
		},
		Keys:     []string{cache.PostKey(post.Value().ID), cache.CurrentUserKey},
		Prefixes: []string{cache.FeedPrefix, cache.SearchPrefix},
	})
}

// ToggleSave saves the post, or deletes the saves row if already saved
func (co *Coordinator) ToggleSave(ctx context.Context, save *View[SaveState]) (SaveState, error) {
	s := save.Value()
	return Run(ctx, co, Mutation[SaveState]{
		Action: "Save post",
		View:   save,
		Apply: func(s SaveState) SaveState {
			if s.Saved() {
				s.RecordID = ""
			} else {
				s.RecordID = pendingRecord
			}
			return s
		},
		Dispatch: func(ctx context.Context, prev, next SaveState) (SaveState, error) {
			if prev.Saved() {
				return next, co.gw.DeleteSavedPost(ctx, prev.RecordID)
			}
			row, err := co.gw.SavePost(ctx, next.PostID, next.UserID)
			if err != nil {
				return next, err
			}
			next.RecordID = row.ID
			return next, nil
		},
		Keys:     []string{cache.SavedKey(s.UserID, s.PostID), cache.CurrentUserKey},
		Prefixes: []string{cache.FeedPrefix + "saved"},
	})
}

// Follow adds followeeID to the follower's following list
func (co *Coordinator) Follow(ctx context.Context, follower *View[models.User], followeeID string) (models.User, error) {
	return co.follow(ctx, "Follow user", follower, followeeID, true)
}

// Unfollow removes followeeID from the follower's following list; unfollowing
// a user not followed leaves the list unchanged
func (co *Coordinator) Unfollow(ctx context.Context, follower *View[models.User], followeeID string) (models.User, error) {
	return co.follow(ctx, "Unfollow user", follower, followeeID, false)
}

// ToggleFollow follows followeeID, or unfollows if already following
func (co *Coordinator) ToggleFollow(ctx context.Context, follower *View[models.User], followeeID string) (models.User, error) {
	u := follower.Value()
	if u.IsFollowing(followeeID) {
		return co.Unfollow(ctx, follower, followeeID)
	}
	return co.Follow(ctx, follower, followeeID)
}

// follow resolves the followee, writes the follower's following list, then
// the followee's followedBy list. A missing followee fails the mutation with
// nothing written. When the second write fails the first stays, the relation
// is left asymmetric and the error matches gateway.ErrPartialFailure.
func (co *Coordinator) follow(ctx context.Context, action string, follower *View[models.User], followeeID string, add bool) (models.User, error) {
	u := follower.Value()
	if followeeID == "" || followeeID == u.ID {
		return u, gateway.Reject("follow", gateway.ErrValidationRejected, errors.New("cannot follow yourself or an empty user id"))
	}
	return Run(ctx, co, Mutation[models.User]{
		Action: action,
		View:   follower,
		Apply: func(u models.User) models.User {
			u = u.Clone()
			switch {
			case !add:
				u.Following = slices.DeleteFunc(u.Following, func(id string) bool { return id == followeeID })
			case !slices.Contains(u.Following, followeeID):
				u.Following = append(u.Following, followeeID)
			}
			return u
		},
		Dispatch: func(ctx context.Context, _, next models.User) (models.User, error) {
			graph, err := co.gw.GetFollowGraph(ctx, followeeID)
			// an unfollow still clears a dangling id left by an account that is gone
			if err != nil && (add || !errors.Is(err, gateway.ErrNotFound)) {
				return models.User{}, err
			}

			updated, err := co.gw.UpdateFollowing(ctx, next.ID, next.Following)
			if err != nil {
				return models.User{}, err
			}
			if graph == nil {
				return *updated, nil
			}

			set := slices.DeleteFunc(slices.Clone(graph.FollowedBy), func(id string) bool { return id == next.ID })
			if add {
				set = append(set, next.ID)
			}
			if _, err := co.gw.UpdateFollowedBy(ctx, followeeID, set); err != nil {
				return *updated, gateway.Partial("followedBy", err)
			}
			return *updated, nil
		},
		Keys:        []string{cache.CurrentUserKey, cache.UserKey(u.ID), cache.UserKey(followeeID)},
		Prefixes:    []string{cache.FeedPrefix + "users"},
		KeepPartial: true,
	})
}

// UpdateProfile shows the edited name, username and bio before the backend confirms
func (co *Coordinator) UpdateProfile(ctx context.Context, user *View[models.User], form models.UpdateProfileForm) (models.User, error) {
	return Run(ctx, co, Mutation[models.User]{
		Action: "Update profile",
		View:   user,
		Apply: func(u models.User) models.User {
			u = u.Clone()
			u.Name, u.Username, u.Bio = form.Name, form.Username, form.Bio
			return u
		},
		Dispatch: func(ctx context.Context, _, _ models.User) (models.User, error) {
			u, err := co.gw.UpdateProfile(ctx, form)
			if err != nil {
				return models.User{}, err
			}
			return *u, nil
		},
		Keys:     []string{cache.CurrentUserKey, cache.UserKey(form.UserID)},
		Prefixes: []string{cache.FeedPrefix + "users"},
	})
}

// UpdatePost shows the edited caption, location and tags before the backend confirms
func (co *Coordinator) UpdatePost(ctx context.Context, post *View[models.Post], form models.UpdatePostForm) (models.Post, error) {
	return Run(ctx, co, Mutation[models.Post]{
		Action: "Update post",
		View:   post,
		Apply: func(p models.Post) models.Post {
			p = p.Clone()
			p.Caption, p.Location, p.Tags = form.Caption, form.Location, models.ParseTags(form.Tags)
			return p
		},
		Dispatch: func(ctx context.Context, _, _ models.Post) (models.Post, error) {
			p, err := co.gw.UpdatePost(ctx, form)
			if err != nil {
				return models.Post{}, err
			}
			return *p, nil
		},
		Keys:     []string{cache.PostKey(form.PostID)},
		Prefixes: []string{cache.FeedPrefix, cache.SearchPrefix},
	})
}

// DeletePost empties the view, which readers treat as a removed post
func (co *Coordinator) DeletePost(ctx context.Context, post *View[models.Post]) error {
	p := post.Value()
	_, err := Run(ctx, co, Mutation[models.Post]{
		Action: "Delete post",
		View:   post,
		Apply:  func(models.Post) models.Post { return models.Post{} },
		Dispatch: func(ctx context.Context, prev, next models.Post) (models.Post, error) {
			return next, co.gw.DeletePost(ctx, prev.ID, prev.ImageID)
		},
		Keys:     []string{cache.PostKey(p.ID), cache.CurrentUserKey},
		Prefixes: []string{cache.FeedPrefix, cache.SearchPrefix},
	})
	return err
}

// CreatePost has no optimistic value; feeds are invalidated once the post exists
func (co *Coordinator) CreatePost(ctx context.Context, form models.NewPostForm) (*models.Post, error) {
	return Run(ctx, co, Mutation[*models.Post]{
		Action: "Create post",
		Dispatch: func(ctx context.Context, _, _ *models.Post) (*models.Post, error) {
			return co.gw.CreatePost(ctx, form)
		},
		Keys:     []string{cache.CurrentUserKey},
		Prefixes: []string{cache.FeedPrefix, cache.SearchPrefix},
	})
}

func toggle(set []string, id string) []string {
	if i := slices.Index(set, id); i >= 0 {
		return slices.Delete(set, i, i+1)
	}
	return append(set, id)
}
