package models

import "time"

// SavedPost is the join row recording that User saved Post
type SavedPost struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Post      string    `json:"post"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SavedPostFromDocument converts a saves document
func SavedPostFromDocument(doc *Document) (*SavedPost, error) {
	if err := requireFields(doc, "user", "post"); err != nil {
		return nil, err
	}
	return &SavedPost{
		ID:        doc.ID,
		User:      doc.String("user"),
		Post:      doc.String("post"),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
