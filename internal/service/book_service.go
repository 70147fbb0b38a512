package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bookshelf-labs/library-service/internal/domain"
	"github.com/bookshelf-labs/library-service/internal/repository"
	"github.com/bookshelf-labs/library-service/internal/storage"
	apperrors "github.com/bookshelf-labs/library-service/pkg/util/errorutil"
)

// CreateBookInput carries admin-supplied catalog fields.
type CreateBookInput struct {
	Title         string
	Author        string
	Description   string
	PublishedYear int
}

// BookPage is one page of a catalog listing.
type BookPage struct {
	Books []domain.Book
	Total int
	Page  int
	Size  int
}

// BookService manages the catalog and its files.
type BookService struct {
	books  repository.BookRepository
	files  *storage.FileStore
	logger *zap.Logger
}

// NewBookService constructs the service.
func NewBookService(books repository.BookRepository, files *storage.FileStore, logger *zap.Logger) *BookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookService{books: books, files: files, logger: logger}
}

// List returns a page of books, optionally filtered by title/author.
func (s *BookService) List(ctx context.Context, query domain.BookQuery) (*BookPage, error) {
	query = query.Normalize()
	books, total, err := s.books.List(ctx, query)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []domain.Book{}
	}
	return &BookPage{Books: books, Total: total, Page: query.Page, Size: query.Size}, nil
}

// Get loads one book.
func (s *BookService) Get(ctx context.Context, id string) (*domain.Book, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFound("book", nil)
	}
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("book", nil)
		}
		return nil, err
	}
	return book, nil
}

// Create adds a catalog entry.
func (s *BookService) Create(ctx context.Context, input CreateBookInput) (*domain.Book, error) {
	details := map[string]any{}
	title := strings.TrimSpace(input.Title)
	author := strings.TrimSpace(input.Author)
	if title == "" {
		details["title"] = "required"
	}
	if author == "" {
		details["author"] = "required"
	}
	if input.PublishedYear < 0 || input.PublishedYear > time.Now().Year()+1 {
		details["published_year"] = "out of range"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid book", details)
	}

	book := &domain.Book{
		ID:            uuid.NewString(),
		Title:         title,
		Author:        author,
		Description:   strings.TrimSpace(input.Description),
		PublishedYear: input.PublishedYear,
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	s.logger.Info("book created", zap.String("book_id", book.ID))
	return book, nil
}

// Delete removes a book and its stored file.
func (s *BookService) Delete(ctx context.Context, id string) error {
	book, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.books.Delete(ctx, book.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("book", nil)
		}
		return err
	}
	if book.HasPDF() {
		if err := s.files.Remove(book.PDFPath); err != nil {
			s.logger.Warn("failed to remove book file", zap.String("book_id", book.ID), zap.Error(err))
		}
	}
	return nil
}

// AttachPDF stores the uploaded file and links it to the book, replacing any previous file.
func (s *BookService) AttachPDF(ctx context.Context, id, filename string, r io.Reader) (*domain.Book, error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, apperrors.NewValidationError("only PDF files are accepted", map[string]any{"file": filename})
	}

	key, err := s.files.Save(filename, r)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperrors.NewValidationError("file too large", nil)
		}
		return nil, err
	}
	if err := s.books.SetPDFPath(ctx, book.ID, key); err != nil {
		_ = s.files.Remove(key)
		return nil, err
	}

	if book.HasPDF() {
		if err := s.files.Remove(book.PDFPath); err != nil {
			s.logger.Warn("failed to remove replaced book file", zap.String("book_id", book.ID), zap.Error(err))
		}
	}
	book.PDFPath = key
	return book, nil
}

// OpenPDF resolves the stored file for download.
func (s *BookService) OpenPDF(ctx context.Context, id string) (path string, downloadName string, err error) {
	book, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	if !book.HasPDF() {
		return "", "", apperrors.NewNotFound("book file", nil)
	}
	path, err = s.files.Path(book.PDFPath)
	if err != nil {
		return "", "", err
	}
	return path, downloadFilename(book.Title), nil
}

func downloadFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, title)
	if name == "" {
		name = "book"
	}
	return name + ".pdf"
}
