package gateway

import (
	"context"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// SavePost records that userID saved postID. Saving an already saved post
// returns the existing row instead of creating a second one.
func (c *Client) SavePost(ctx context.Context, postID, userID string) (*models.SavedPost, error) {
	const op = "savePost"
	existing, err := call(ctx, c, op, func(ctx context.Context) (*models.DocumentList, error) {
		return c.documents.List(ctx, models.CollectionSaves, models.Query{
			Filters: []models.Filter{{Field: "user", Value: userID}, {Field: "post", Value: postID}},
			Limit:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(existing.Documents) > 0 {
		return c.toSavedPost(op, &existing.Documents[0])
	}

	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Create(ctx, models.CollectionSaves, NewID(), map[string]any{
			"user": userID,
			"post": postID,
		})
	})
	if err != nil {
		return nil, err
	}
	return c.toSavedPost(op, doc)
}

// DeleteSavedPost removes one saves row
func (c *Client) DeleteSavedPost(ctx context.Context, savedRecordID string) error {
	return c.exec(ctx, "deleteSavedPost", func(ctx context.Context) error {
		return c.documents.Delete(ctx, models.CollectionSaves, savedRecordID)
	})
}

// FindSavedPost returns the row recording that userID saved postID, or nil
func (c *Client) FindSavedPost(ctx context.Context, postID, userID string) (*models.SavedPost, error) {
	const op = "findSavedPost"
	list, err := call(ctx, c, op, func(ctx context.Context) (*models.DocumentList, error) {
		return c.documents.List(ctx, models.CollectionSaves, models.Query{
			Filters: []models.Filter{{Field: "user", Value: userID}, {Field: "post", Value: postID}},
			Limit:   1,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(list.Documents) == 0 {
		return nil, nil
	}
	return c.toSavedPost(op, &list.Documents[0])
}

func (c *Client) toSavedPost(op string, doc *models.Document) (*models.SavedPost, error) {
	saved, err := models.SavedPostFromDocument(doc)
	if err != nil {
		return nil, c.fail(op, err)
	}
	return saved, nil
}
