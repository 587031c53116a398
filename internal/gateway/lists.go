package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// Page sizes of the canonical list queries
const (
	RecentPostsLimit = 20
	PostsPageLimit   = 2
	UsersPageLimit   = 2
	SavedPageLimit   = 10
)

// GetRecentPosts returns the newest posts, capped at RecentPostsLimit. There is
// no cursor beyond the cap.
func (c *Client) GetRecentPosts(ctx context.Context) (models.Page[models.Post], error) {
	return list(ctx, c, "getRecentPosts", models.CollectionPosts, models.Query{
		OrderDesc: models.FieldUpdatedAt,
		Limit:     RecentPostsLimit,
	}, models.PostFromDocument)
}

// ListPosts returns one page of all posts after cursor
func (c *Client) ListPosts(ctx context.Context, cursor string) (models.Page[models.Post], error) {
	return list(ctx, c, "getInfinitePosts", models.CollectionPosts, models.Query{
		OrderDesc:   models.FieldUpdatedAt,
		CursorAfter: cursor,
		Limit:       PostsPageLimit,
	}, models.PostFromDocument)
}

// ListUserPosts returns one page of the posts created by userID
func (c *Client) ListUserPosts(ctx context.Context, userID, cursor string) (models.Page[models.Post], error) {
	return list(ctx, c, "getInfiniteUserPosts", models.CollectionPosts, models.Query{
		OrderDesc:   models.FieldUpdatedAt,
		Filters:     []models.Filter{{Field: "creator", Value: userID}},
		CursorAfter: cursor,
		Limit:       PostsPageLimit,
	}, models.PostFromDocument)
}

// ListUsers returns one page of the user directory
func (c *Client) ListUsers(ctx context.Context, cursor string) (models.Page[models.User], error) {
	return list(ctx, c, "getInfiniteUsers", models.CollectionUsers, models.Query{
		OrderDesc:   models.FieldUpdatedAt,
		CursorAfter: cursor,
		Limit:       UsersPageLimit,
	}, models.UserFromDocument)
}

// ListSavedPosts returns one page of the rows saved by userID
func (c *Client) ListSavedPosts(ctx context.Context, userID, cursor string) (models.Page[models.SavedPost], error) {
	return list(ctx, c, "getInfiniteSavedPosts", models.CollectionSaves, models.Query{
		OrderDesc:   models.FieldUpdatedAt,
		Filters:     []models.Filter{{Field: "user", Value: userID}},
		CursorAfter: cursor,
		Limit:       SavedPageLimit,
	}, models.SavedPostFromDocument)
}

// SearchPosts returns posts whose caption contains term
func (c *Client) SearchPosts(ctx context.Context, term string) (models.Page[models.Post], error) {
	const op = "searchPosts"
	term = strings.TrimSpace(term)
	if term == "" {
		return models.Page[models.Post]{}, c.fail(op, fmt.Errorf("%w: empty search term", errInvalidArgument))
	}
	return list(ctx, c, op, models.CollectionPosts, models.Query{
		Search: &models.Search{Field: "caption", Term: term},
	}, models.PostFromDocument)
}

// list runs q and converts every document with decode. Documents that fail to
// decode are dropped; the cursor still points at the last raw document so paging
// does not stall on them.
func list[T any](ctx context.Context, c *Client, op, collection string, q models.Query, decode func(*models.Document) (*T, error)) (models.Page[T], error) {
	res, err := call(ctx, c, op, func(ctx context.Context) (*models.DocumentList, error) {
		return c.documents.List(ctx, collection, q)
	})
	if err != nil {
		return models.Page[T]{}, err
	}

	page := models.Page[T]{Items: make([]T, 0, len(res.Documents))}
	for i := range res.Documents {
		item, err := decode(&res.Documents[i])
		if err != nil {
			glog.Warningf("gateway: %s: dropping document: %v", op, err)
			continue
		}
		page.Items = append(page.Items, *item)
	}
	if n := len(res.Documents); n > 0 {
		page.Cursor = res.Documents[n-1].ID
	}
	return page, nil
}
