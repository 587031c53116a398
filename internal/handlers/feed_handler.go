package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/client"
	"github.com/anonto42/nano-midea/client/internal/feed"
	"github.com/anonto42/nano-midea/client/internal/middleware"
	"github.com/anonto42/nano-midea/client/internal/mutation"
)

// FeedHandler serves the paginated feeds of a session
type FeedHandler struct{}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler() *FeedHandler {
	return &FeedHandler{}
}

// FeedResponse is a feed snapshot flattened for clients
type FeedResponse[T any] struct {
	Name    string     `json:"name"`
	State   feed.State `json:"state"`
	Items   []T        `json:"items"`
	Pages   int        `json:"pages"`
	HasMore bool       `json:"has_more"`
	Stale   bool       `json:"stale"`
}

// SaveResponse is the save state of one post
type SaveResponse struct {
	mutation.SaveState
	Saved bool `json:"saved"`
}

func saveResponse(s mutation.SaveState) SaveResponse {
	return SaveResponse{SaveState: s, Saved: s.Saved()}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feeds/:name", h.GetFeed)
	g.GET("/users/:id/posts", h.GetUserPosts)
}

// GetFeed returns a named feed. ?reset=1 restarts it and ?next=1 loads the
// following page; an idle feed always loads its first page.
func (h *FeedHandler) GetFeed(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	cl := middleware.ClientFrom(c)

	name := c.Param("name")
	switch name {
	case client.FeedRecent:
		return serveFeed(c, name, cl.RecentPosts())
	case client.FeedPosts:
		return serveFeed(c, name, cl.Posts())
	case client.FeedUsers:
		return serveFeed(c, name, cl.Users())
	case client.FeedSaved:
		return serveFeed(c, name, cl.Saved())
	default:
		return echo.NewHTTPError(http.StatusNotFound, "Unknown feed")
	}
}

// GetUserPosts returns the feed of one user's posts
func (h *FeedHandler) GetUserPosts(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	return serveFeed(c, client.FeedUserPosts, middleware.ClientFrom(c).UserPosts(c.Param("id")))
}

func serveFeed[T any](c echo.Context, name string, f *feed.Feed[T]) error {
	if c.QueryParam("reset") == "1" {
		f.Restart()
	}

	snap, _ := f.Snapshot()
	if c.QueryParam("next") == "1" || snap.State == feed.Idle {
		if err := f.FetchNext(c.Request().Context()); err != nil {
			return httpError(err)
		}
	}

	snap, stale := f.Snapshot()
	items := snap.Items()
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, FeedResponse[T]{
		Name:    name,
		State:   snap.State,
		Items:   items,
		Pages:   len(snap.Pages),
		HasMore: snap.HasMore,
		Stale:   stale,
	})
}
