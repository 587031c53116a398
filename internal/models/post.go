package models

import (
	"slices"
	"strings"
	"time"
)

// Post is a document in the posts collection, owned by Creator
type Post struct {
	ID        string    `json:"id"`
	Creator   string    `json:"creator"`
	Caption   string    `json:"caption"`
	ImageURL  string    `json:"image_url"`
	ImageID   string    `json:"image_id"`
	Location  string    `json:"location"`
	Tags      []string  `json:"tags"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostFromDocument converts a posts document, rejecting documents without a creator
func PostFromDocument(doc *Document) (*Post, error) {
	if err := requireFields(doc, "creator"); err != nil {
		return nil, err
	}
	return &Post{
		ID:        doc.ID,
		Creator:   doc.String("creator"),
		Caption:   doc.String("caption"),
		ImageURL:  doc.String("imageUrl"),
		ImageID:   doc.String("imageId"),
		Location:  doc.String("location"),
		Tags:      doc.Strings("tags"),
		Likes:     doc.Strings("likes"),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// Clone returns a copy that shares no slices with p
func (p Post) Clone() Post {
	p.Tags = slices.Clone(p.Tags)
	p.Likes = slices.Clone(p.Likes)
	return p
}

// LikedBy reports whether userID is in the post's likes
func (p *Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// Upload is a file picked by the user, not yet stored
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewPostForm defines the request body for creating a post
type NewPostForm struct {
	UserID   string  `json:"user_id" validate:"required"`
	Caption  string  `json:"caption" validate:"required,min=5,max=2200"`
	Location string  `json:"location" validate:"required,min=2,max=100"`
	Tags     string  `json:"tags"`
	File     *Upload `json:"-" validate:"required"`
}

// UpdatePostForm defines a post edit. File, when set, replaces the image.
type UpdatePostForm struct {
	PostID   string  `json:"post_id" validate:"required"`
	Caption  string  `json:"caption" validate:"required,min=5,max=2200"`
	Location string  `json:"location" validate:"required,min=2,max=100"`
	Tags     string  `json:"tags"`
	ImageURL string  `json:"image_url"`
	ImageID  string  `json:"image_id"`
	File     *Upload `json:"-"`
}

// ParseTags turns "a, b,c" into [a b c]
func ParseTags(raw string) []string {
	raw = strings.ReplaceAll(raw, " ", "")
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
