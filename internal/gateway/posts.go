package gateway

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// Image previews are requested at this size, cropped from the top at full quality
const (
	previewSize    = 2000
	previewGravity = "top"
	previewQuality = 100
)

type image struct {
	url string
	id  string
}

// CreatePost uploads the image and creates the post document. If anything after
// the upload fails the uploaded file is deleted before the error is returned.
func (c *Client) CreatePost(ctx context.Context, form models.NewPostForm) (*models.Post, error) {
	const op = "createPost"
	if err := c.validate(op, form); err != nil {
		return nil, err
	}

	img, err := c.storeImage(ctx, op, form.File)
	if err != nil {
		return nil, err
	}

	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Create(ctx, models.CollectionPosts, NewID(), map[string]any{
			"creator":  form.UserID,
			"caption":  form.Caption,
			"imageUrl": img.url,
			"imageId":  img.id,
			"location": form.Location,
			"tags":     models.ParseTags(form.Tags),
			"likes":    []string{},
		})
	})
	if err != nil {
		return nil, c.compensate(ctx, op, img.id, err)
	}
	return c.toPost(op, doc)
}

// UpdatePost edits a post, replacing its image when form.File is set
func (c *Client) UpdatePost(ctx context.Context, form models.UpdatePostForm) (*models.Post, error) {
	const op = "updatePost"
	if err := c.validate(op, form); err != nil {
		return nil, err
	}

	img := image{url: form.ImageURL, id: form.ImageID}
	replaced := false
	if form.File != nil {
		uploaded, err := c.storeImage(ctx, op, form.File)
		if err != nil {
			return nil, err
		}
		img, replaced = uploaded, true
	}

	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Update(ctx, models.CollectionPosts, form.PostID, map[string]any{
			"caption":  form.Caption,
			"imageUrl": img.url,
			"imageId":  img.id,
			"location": form.Location,
			"tags":     models.ParseTags(form.Tags),
		})
	})
	if err != nil {
		if replaced {
			return nil, c.compensate(ctx, op, img.id, err)
		}
		return nil, err
	}
	if replaced {
		c.discardFile(ctx, op, form.ImageID)
	}
	return c.toPost(op, doc)
}

// DeletePost deletes the post document, then its image
func (c *Client) DeletePost(ctx context.Context, postID, imageID string) error {
	const op = "deletePost"
	if postID == "" || imageID == "" {
		return c.fail(op, fmt.Errorf("%w: post id and image id are required", errInvalidArgument))
	}
	err := c.exec(ctx, op, func(ctx context.Context) error {
		return c.documents.Delete(ctx, models.CollectionPosts, postID)
	})
	if err != nil {
		return err
	}
	c.discardFile(ctx, op, imageID)
	return nil
}

// LikePost replaces the post's likes with likes
func (c *Client) LikePost(ctx context.Context, postID string, likes []string) (*models.Post, error) {
	const op = "likePost"
	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Update(ctx, models.CollectionPosts, postID, map[string]any{"likes": likes})
	})
	if err != nil {
		return nil, err
	}
	return c.toPost(op, doc)
}

// GetPostByID fetches one post
func (c *Client) GetPostByID(ctx context.Context, postID string) (*models.Post, error) {
	const op = "getPostById"
	if postID == "" {
		return nil, c.fail(op, fmt.Errorf("%w: empty post id", errInvalidArgument))
	}
	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Get(ctx, models.CollectionPosts, postID)
	})
	if err != nil {
		return nil, err
	}
	return c.toPost(op, doc)
}

// storeImage uploads a file and resolves its preview URL, deleting the file if
// the URL cannot be produced
func (c *Client) storeImage(ctx context.Context, op string, upload *models.Upload) (image, error) {
	file, err := call(ctx, c, op+": uploadFile", func(ctx context.Context) (*models.File, error) {
		return c.files.Upload(ctx, upload)
	})
	if err != nil {
		return image{}, err
	}
	url, err := c.files.PreviewURL(file.ID, previewSize, previewSize, previewGravity, previewQuality)
	if err != nil {
		return image{}, c.compensate(ctx, op, file.ID, c.fail(op+": getFilePreview", err))
	}
	return image{url: url, id: file.ID}, nil
}

func (c *Client) toPost(op string, doc *models.Document) (*models.Post, error) {
	post, err := models.PostFromDocument(doc)
	if err != nil {
		return nil, c.fail(op, err)
	}
	return post, nil
}
