package gateway

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-midea/client/internal/models"
)

// GetUserByID fetches one user
func (c *Client) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	const op = "getUserById"
	if userID == "" {
		return nil, c.fail(op, fmt.Errorf("%w: empty user id", errInvalidArgument))
	}
	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Get(ctx, models.CollectionUsers, userID)
	})
	if err != nil {
		return nil, err
	}
	return c.toUser(op, doc)
}

// FollowGraph is the pair of relation lists of one user
type FollowGraph struct {
	Following  []string
	FollowedBy []string
}

// GetFollowGraph reads only the relation lists of a user
func (c *Client) GetFollowGraph(ctx context.Context, userID string) (*FollowGraph, error) {
	const op = "getFollowGraph"
	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Get(ctx, models.CollectionUsers, userID, "following", "followedBy")
	})
	if err != nil {
		return nil, err
	}
	return &FollowGraph{Following: doc.Strings("following"), FollowedBy: doc.Strings("followedBy")}, nil
}

// UpdateFollowing replaces the list of users userID follows
func (c *Client) UpdateFollowing(ctx context.Context, userID string, following []string) (*models.User, error) {
	return c.updateUser(ctx, "userFollowing", userID, map[string]any{"following": following})
}

// UpdateFollowedBy replaces the list of users following userID
func (c *Client) UpdateFollowedBy(ctx context.Context, userID string, followedBy []string) (*models.User, error) {
	return c.updateUser(ctx, "userFollowedBy", userID, map[string]any{"followedBy": followedBy})
}

// UpdateProfile edits a profile, replacing the avatar when form.File is set
func (c *Client) UpdateProfile(ctx context.Context, form models.UpdateProfileForm) (*models.User, error) {
	const op = "updateProfile"
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

	user, err := c.updateUser(ctx, op, form.UserID, map[string]any{
		"name":     form.Name,
		"username": form.Username,
		"imageUrl": img.url,
		"imageId":  img.id,
		"bio":      form.Bio,
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
	return user, nil
}

func (c *Client) updateUser(ctx context.Context, op, userID string, fields map[string]any) (*models.User, error) {
	doc, err := call(ctx, c, op, func(ctx context.Context) (*models.Document, error) {
		return c.documents.Update(ctx, models.CollectionUsers, userID, fields)
	})
	if err != nil {
		return nil, err
	}
	return c.toUser(op, doc)
}
