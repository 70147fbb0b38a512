package dto

import (
	"time"

	"github.com/bookshelf-labs/library-service/internal/domain"
)

// CreateBookRequest payload for catalog additions.
type CreateBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	PublishedYear int    `json:"published_year"`
}

// BookResponse is the public view of a book.
type BookResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	PublishedYear int       `json:"published_year"`
	HasPDF        bool      `json:"has_pdf"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewBookResponse maps a domain book.
func NewBookResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Description:   b.Description,
		PublishedYear: b.PublishedYear,
		HasPDF:        b.HasPDF(),
		AverageRating: b.AverageRating,
		RatingCount:   b.RatingCount,
		CreatedAt:     b.CreatedAt,
	}
}

// PageMeta describes a listing page.
type PageMeta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}
