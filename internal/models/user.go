package models

import (
	"slices"
	"time"
)

// User is the profile document stored in the users collection
type User struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Name       string    `json:"name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	ImageURL   string    `json:"image_url"`
	ImageID    string    `json:"image_id,omitempty"`
	Bio        string    `json:"bio"`
	Following  []string  `json:"following"`
	FollowedBy []string  `json:"followed_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserFromDocument converts a users document, rejecting documents without an account link
func UserFromDocument(doc *Document) (*User, error) {
	if err := requireFields(doc, "accountId", "email"); err != nil {
		return nil, err
	}
	return &User{
		ID:         doc.ID,
		AccountID:  doc.String("accountId"),
		Name:       doc.String("name"),
		Username:   doc.String("username"),
		Email:      doc.String("email"),
		ImageURL:   doc.String("imageUrl"),
		ImageID:    doc.String("imageId"),
		Bio:        doc.String("bio"),
		Following:  doc.Strings("following"),
		FollowedBy: doc.Strings("followedBy"),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}, nil
}

// Clone returns a copy that shares no slices with u
func (u User) Clone() User {
	u.Following = slices.Clone(u.Following)
	u.FollowedBy = slices.Clone(u.FollowedBy)
	return u
}

// IsFollowing reports whether u follows userID
func (u *User) IsFollowing(userID string) bool {
	return slices.Contains(u.Following, userID)
}

// SignupForm defines the request body for creating an account
type SignupForm struct {
	Name     string `json:"name" validate:"required,min=2"`
	Username string `json:"username" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SigninForm defines the request body for starting a session
type SigninForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// UpdateProfileForm defines a profile edit. File, when set, replaces the avatar.
type UpdateProfileForm struct {
	UserID   string  `json:"user_id" validate:"required"`
	Name     string  `json:"name" validate:"required,min=5,max=255"`
	Username string  `json:"username" validate:"required,min=2,max=100"`
	Bio      string  `json:"bio"`
	ImageURL string  `json:"image_url"`
	ImageID  string  `json:"image_id"`
	File     *Upload `json:"-"`
}
