package models

// Page is one fetched page of a list. Cursor is the id of the last document the
// backend returned, or "" when the page was empty.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Cursor string `json:"cursor"`
}
