package domain

import (
	"math"
	"time"
)

// Book is a catalog entry.
type Book struct {
	ID            string
	Title         string
	Author        string
	Description   string
	PublishedYear int
	PDFPath       string
	AverageRating float64
	RatingCount   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPDF reports whether a file has been uploaded for the book.
func (b *Book) HasPDF() bool {
	return b.PDFPath != ""
}

// MaxPage bounds the page number so the row offset fits in a 32-bit integer.
const MaxPage = math.MaxInt32 / 100

// BookQuery filters and paginates catalog listings.
type BookQuery struct {
	Search string
	Page   int
	Size   int
}

// Normalize clamps paging values.
func (q BookQuery) Normalize() BookQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Size < 1 {
		q.Size = 20
	}
	if q.Size > 100 {
		q.Size = 100
	}
	return q
}

// Offset returns the row offset for the page.
func (q BookQuery) Offset() int {
	return (q.Page - 1) * q.Size
}
