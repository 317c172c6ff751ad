package models

import "time"

// Collection is a user's named grouping of their own books.
type Collection struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	BookCount int       `json:"book_count"`
	Books     []Book    `json:"books,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
