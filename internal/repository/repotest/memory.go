// Package repotest provides in-memory repositories for tests.
package repotest

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookshelf-labs/library-service/internal/domain"
	"github.com/bookshelf-labs/library-service/internal/repository"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	order []string
}

func NewUsers() *Users {
	return &Users{byID: map[string]*domain.User{}}
}

// Count returns the number of stored accounts.
func (m *Users) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *Users) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	m.byID[user.ID] = &cp
	m.order = append(m.order, user.ID)
	return nil
}

func (m *Users) UpdateRole(_ context.Context, id string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Role = role
	return nil
}

func (m *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *user
	return &cp, nil
}

func (m *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if user, ok := m.byID[id]; ok && user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// Remove deletes the account with email.
func (m *Users) Remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, user := range m.byID {
		if user.Email == email {
			delete(m.byID, id)
		}
	}
}

// Books is an in-memory repository.BookRepository.
type Books struct {
	mu    sync.Mutex
	books map[string]*domain.Book
}

func NewBooks() *Books {
	return &Books{books: map[string]*domain.Book{}}
}

func (m *Books) Create(_ context.Context, book *domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	book.CreatedAt, book.UpdatedAt = now, now
	cp := *book
	m.books[book.ID] = &cp
	return nil
}

func (m *Books) GetByID(_ context.Context, id string) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *book
	return &cp, nil
}

func (m *Books) List(_ context.Context, q domain.BookQuery) ([]domain.Book, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []domain.Book
	needle := strings.ToLower(q.Search)
	for _, b := range m.books {
		if needle == "" || strings.Contains(strings.ToLower(b.Title+" "+b.Author), needle) {
			matched = append(matched, *b)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *Books) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.books, id)
	return nil
}

func (m *Books) SetPDFPath(_ context.Context, id, pdfPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return pgx.ErrNoRows
	}
	book.PDFPath = pdfPath
	return nil
}

func (m *Books) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.books[id]
	return ok
}

func (m *Books) setRating(id string, summary domain.RatingSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return pgx.ErrNoRows
	}
	book.AverageRating = summary.Average
	book.RatingCount = summary.Count
	return nil
}

// Reviews is an in-memory repository.ReviewRepository. Reviews are unique per
// book and user. Writes update the rating of the matching book in books.
type Reviews struct {
	mu      sync.Mutex
	reviews map[string]*domain.Review
	books   *Books
}

func NewReviews(books *Books) *Reviews {
	return &Reviews{reviews: map[string]*domain.Review{}, books: books}
}

func (m *Reviews) Upsert(_ context.Context, review *domain.Review) (domain.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.books.has(review.BookID) {
		return domain.RatingSummary{}, pgx.ErrNoRows
	}
	m.upsert(review)
	return m.refresh(review.BookID)
}

func (m *Reviews) upsert(review *domain.Review) {
	now := time.Now()
	for _, existing := range m.reviews {
		if existing.BookID == review.BookID && existing.UserID == review.UserID {
			existing.Rating = review.Rating
			existing.Comment = review.Comment
			existing.UpdatedAt = now
			review.ID = existing.ID
			review.CreatedAt = existing.CreatedAt
			review.UpdatedAt = now
			return
		}
	}
	review.CreatedAt, review.UpdatedAt = now, now
	cp := *review
	m.reviews[review.ID] = &cp
}

func (m *Reviews) GetByID(_ context.Context, id string) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *review
	return &cp, nil
}

func (m *Reviews) ListByBook(_ context.Context, bookID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, r := range m.reviews {
		if r.BookID == bookID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Reviews) Delete(_ context.Context, bookID, id string) (domain.RatingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	review, ok := m.reviews[id]
	if !ok || review.BookID != bookID {
		return domain.RatingSummary{}, pgx.ErrNoRows
	}
	delete(m.reviews, id)
	return m.refresh(bookID)
}

func (m *Reviews) refresh(bookID string) (domain.RatingSummary, error) {
	var sum, count int
	for _, r := range m.reviews {
		if r.BookID == bookID {
			sum += r.Rating
			count++
		}
	}
	summary := domain.RatingSummary{Count: count}
	if count > 0 {
		summary.Average = math.Round(float64(sum)/float64(count)*100) / 100
	}
	return summary, m.books.setRating(bookID, summary)
}

var (
	_ repository.UserRepository   = (*Users)(nil)
	_ repository.BookRepository   = (*Books)(nil)
	_ repository.ReviewRepository = (*Reviews)(nil)
)
