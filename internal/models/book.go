package models

import (
	"errors"
	"strings"
	"time"
)

type Book struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Author    string     `json:"author"`
	Category  string     `json:"category"`
	Year      *int       `json:"year,omitempty"`
	OwnerID   string     `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"-"`
}

func (b *Book) Validate() error {
	b.Title = strings.TrimSpace(b.Title)
	b.Author = strings.TrimSpace(b.Author)
	b.Category = strings.TrimSpace(b.Category)
	switch {
	case b.Title == "":
		return errors.New("title required")
	case b.Author == "":
		return errors.New("author required")
	case b.Category == "":
		return errors.New("category required")
	}
	if b.Year != nil && (*b.Year < 0 || *b.Year > 9999) {
		return errors.New("year out of range")
	}
	return nil
}

// BookFilter narrows catalog listings. Empty fields match everything.
type BookFilter struct {
	OwnerID  string
	Category string
	Author   string
}
