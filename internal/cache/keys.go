package cache

import "strings"

// Key namespaces
const (
	CurrentUserKey = "user:current"
	UserPrefix     = "user:"
	PostPrefix     = "post:"
	FeedPrefix     = "feed:"
	SearchPrefix   = "search:"
	SavedPrefix    = "saved:"
)

// Key joins a namespace prefix and parameters, e.g. Key(PostPrefix, "123") is "post:123"
func Key(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

// UserKey is the key of one users document
func UserKey(id string) string { return Key(UserPrefix, id) }

// PostKey is the key of one posts document
func PostKey(id string) string { return Key(PostPrefix, id) }

// SavedKey is the key of the saves row of a user and post
func SavedKey(userID, postID string) string { return Key(SavedPrefix, userID, postID) }

// FeedKey is the key of one view of a named feed, e.g. "feed:recent#3"
func FeedKey(name, view string) string { return FeedPrefix + name + "#" + view }
