package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user's rating and comment on a book. One per (user, book).
type Review struct {
	ID        string
	BookID    string
	UserID    string
	UserEmail string
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RatingSummary is the recomputed aggregate stored on a book.
type RatingSummary struct {
	Average float64
	Count   int
}
