package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collections used by the client
const (
	CollectionUsers = "users"
	CollectionPosts = "posts"
	CollectionSaves = "saves"
)

// Fields maintained by the document store on every document
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// ErrMalformedDocument is returned when a backend document lacks the fields its entity requires
var ErrMalformedDocument = errors.New("malformed document")

// Document is an untyped record as returned by the document store
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Fields     map[string]any `json:"fields"`
}

// DocumentList is one page of a list query
type DocumentList struct {
	Total     int        `json:"total"`
	Documents []Document `json:"documents"`
}

// Filter restricts a list query to documents whose Field equals Value
type Filter struct {
	Field string
	Value any
}

// Search restricts a list query to documents whose Field contains Term
type Search struct {
	Field string
	Term  string
}

// Query describes a list request. The zero value lists everything in store order.
type Query struct {
	OrderDesc   string
	Filters     []Filter
	Search      *Search
	CursorAfter string
	Limit       int
}

// String returns the string field or "" when absent or of another type
func (d *Document) String(key string) string {
	if s, ok := d.Fields[key].(string); ok {
		return s
	}
	return ""
}

// Strings coerces a list field into a string slice, skipping non-string entries
func (d *Document) Strings(key string) []string {
	out := []string{}
	switch v := d.Fields[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case primitive.A:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func requireFields(d *Document, keys ...string) error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: missing id in %s", ErrMalformedDocument, d.Collection)
	}
	for _, k := range keys {
		if d.String(k) == "" {
			return fmt.Errorf("%w: %s/%s missing %q", ErrMalformedDocument, d.Collection, d.ID, k)
		}
	}
	return nil
}
