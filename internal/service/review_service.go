package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bookshelf-labs/library-service/internal/domain"
	"github.com/bookshelf-labs/library-service/internal/repository"
	apperrors "github.com/bookshelf-labs/library-service/pkg/util/errorutil"
)

const maxCommentLength = 2000

// ReviewService records ratings and keeps each book's average in sync.
type ReviewService struct {
	reviews repository.ReviewRepository
	books   repository.BookRepository
	users   repository.UserRepository
	logger  *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(reviews repository.ReviewRepository, books repository.BookRepository, users repository.UserRepository, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{reviews: reviews, books: books, users: users, logger: logger}
}

// AddReview creates or replaces the caller's review of a book and recomputes its rating.
func (s *ReviewService) AddReview(ctx context.Context, principal *domain.Principal, bookID string, rating int, comment string) (*domain.Review, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	comment = strings.TrimSpace(comment)
	details := map[string]any{}
	if rating < domain.MinRating || rating > domain.MaxRating {
		details["rating"] = "must be between 1 and 5"
	}
	if len(comment) > maxCommentLength {
		details["comment"] = "too long"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid review", details)
	}

	if err := s.ensureBook(ctx, bookID); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, principal.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("unknown user")
		}
		return nil, err
	}

	review := &domain.Review{
		ID:        uuid.NewString(),
		BookID:    bookID,
		UserID:    user.ID,
		UserEmail: user.Email,
		Rating:    rating,
		Comment:   comment,
	}
	summary, err := s.reviews.Upsert(ctx, review)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("book", nil)
		}
		return nil, err
	}
	s.logRating(bookID, summary)
	return review, nil
}

// ListReviews returns all reviews of a book, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, bookID string) ([]domain.Review, error) {
	if err := s.ensureBook(ctx, bookID); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews, nil
}

// DeleteReview removes a review. Only its author or an admin may delete it.
func (s *ReviewService) DeleteReview(ctx context.Context, principal *domain.Principal, reviewID string) error {
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if _, err := uuid.Parse(reviewID); err != nil {
		return apperrors.NewNotFound("review", nil)
	}
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("review", nil)
		}
		return err
	}
	if !principal.IsAdmin() && review.UserEmail != principal.Subject {
		return apperrors.NewForbidden("not the review author")
	}
	summary, err := s.reviews.Delete(ctx, review.BookID, reviewID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("review", nil)
		}
		return err
	}
	s.logRating(review.BookID, summary)
	return nil
}

func (s *ReviewService) logRating(bookID string, summary domain.RatingSummary) {
	s.logger.Debug("rating recomputed",
		zap.String("book_id", bookID),
		zap.Float64("average", summary.Average),
		zap.Int("count", summary.Count))
}

func (s *ReviewService) ensureBook(ctx context.Context, bookID string) error {
	if _, err := uuid.Parse(bookID); err != nil {
		return apperrors.NewNotFound("book", nil)
	}
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("book", nil)
		}
		return err
	}
	return nil
}
