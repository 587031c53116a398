package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/client/internal/middleware"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct{}

// NewPostHandler creates a new PostHandler
func NewPostHandler() *PostHandler {
	return &PostHandler{}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/like", h.ToggleLike)
	g.GET("/posts/:id/save", h.GetSave)
	g.POST("/posts/:id/save", h.ToggleSave)
	g.GET("/search", h.Search)
}

// CreatePost publishes a post from a multipart form
func (h *PostHandler) CreatePost(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	file, err := formFile(c)
	if err != nil {
		return err
	}

	form := models.NewPostForm{
		Caption:  c.FormValue("caption"),
		Location: c.FormValue("location"),
		Tags:     c.FormValue("tags"),
		File:     file,
	}
	post, err := middleware.ClientFrom(c).CreatePost(c.Request().Context(), form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	post, err := middleware.ClientFrom(c).Post(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// UpdatePost edits a post; a new file replaces the image
func (h *PostHandler) UpdatePost(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	file, err := formFile(c)
	if err != nil {
		return err
	}

	form := models.UpdatePostForm{
		PostID:   c.Param("id"),
		Caption:  c.FormValue("caption"),
		Location: c.FormValue("location"),
		Tags:     c.FormValue("tags"),
		File:     file,
	}
	post, err := middleware.ClientFrom(c).UpdatePost(c.Request().Context(), form)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// DeletePost removes a post and its image
func (h *PostHandler) DeletePost(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	if err := middleware.ClientFrom(c).DeletePost(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleLike likes or unlikes a post
func (h *PostHandler) ToggleLike(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	post, err := middleware.ClientFrom(c).ToggleLike(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, post)
}

// GetSave reports whether the signed-in user saved a post
func (h *PostHandler) GetSave(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	view, err := middleware.ClientFrom(c).SaveView(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saveResponse(view.Value()))
}

// ToggleSave saves or unsaves a post
func (h *PostHandler) ToggleSave(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	state, err := middleware.ClientFrom(c).ToggleSave(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, saveResponse(state))
}

// Search finds posts by caption
func (h *PostHandler) Search(c echo.Context) error {
	if err := mustClient(c); err != nil {
		return err
	}
	page, err := middleware.ClientFrom(c).Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, page)
}
