package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookshelf-labs/library-service/internal/domain"
)

// ReviewRepository persists book reviews. Writes recompute the book's rating
// in the same transaction and return the stored summary.
type ReviewRepository interface {
	Upsert(ctx context.Context, review *domain.Review) (domain.RatingSummary, error)
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	ListByBook(ctx context.Context, bookID string) ([]domain.Review, error)
	Delete(ctx context.Context, bookID, id string) (domain.RatingSummary, error)
}

type reviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository constructs repository.
func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{pool: pool}
}

// Upsert inserts the review or replaces the caller's existing review of the same book.
func (r *reviewRepository) Upsert(ctx context.Context, review *domain.Review) (domain.RatingSummary, error) {
	const query = `
        INSERT INTO reviews (id, book_id, user_id, rating, comment)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (book_id, user_id)
        DO UPDATE SET rating=EXCLUDED.rating, comment=EXCLUDED.comment, updated_at=NOW()
        RETURNING id, created_at, updated_at`
	var summary domain.RatingSummary
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBook(ctx, tx, review.BookID); err != nil {
			return err
		}
		err := tx.QueryRow(ctx, query,
			review.ID,
			review.BookID,
			review.UserID,
			review.Rating,
			review.Comment,
		).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
		if err != nil {
			return err
		}
		summary, err = refreshRating(ctx, tx, review.BookID)
		return err
	})
	return summary, err
}

func (r *reviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	const query = `
        SELECT rv.id, rv.book_id, rv.user_id, u.email, rv.rating, rv.comment, rv.created_at, rv.updated_at
        FROM reviews rv JOIN users u ON u.id = rv.user_id
        WHERE rv.id=$1`
	var review domain.Review
	if err := scanReview(r.pool.QueryRow(ctx, query, id), &review); err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) ListByBook(ctx context.Context, bookID string) ([]domain.Review, error) {
	const query = `
        SELECT rv.id, rv.book_id, rv.user_id, u.email, rv.rating, rv.comment, rv.created_at, rv.updated_at
        FROM reviews rv JOIN users u ON u.id = rv.user_id
        WHERE rv.book_id=$1
        ORDER BY rv.created_at DESC`
	rows, err := r.pool.Query(ctx, query, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Review
	for rows.Next() {
		var review domain.Review
		if err := scanReview(rows, &review); err != nil {
			return nil, err
		}
		result = append(result, review)
	}
	return result, rows.Err()
}

func (r *reviewRepository) Delete(ctx context.Context, bookID, id string) (domain.RatingSummary, error) {
	var summary domain.RatingSummary
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockBook(ctx, tx, bookID); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `DELETE FROM reviews WHERE id=$1 AND book_id=$2`, id, bookID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		summary, err = refreshRating(ctx, tx, bookID)
		return err
	})
	return summary, err
}

// lockBook serializes review writes per book. Rows are always locked book
// first, then review.
func lockBook(ctx context.Context, tx pgx.Tx, bookID string) error {
	var one int
	return tx.QueryRow(ctx, `SELECT 1 FROM books WHERE id=$1 FOR UPDATE`, bookID).Scan(&one)
}

// refreshRating stores the book's average, rounded to two decimals, and review count.
func refreshRating(ctx context.Context, tx pgx.Tx, bookID string) (domain.RatingSummary, error) {
	const query = `
        UPDATE books b
        SET average_rating=s.rating_avg, rating_count=s.rating_cnt, updated_at=NOW()
        FROM (
            SELECT ROUND(COALESCE(AVG(rating), 0), 2)::float8 AS rating_avg, COUNT(*)::int AS rating_cnt
            FROM reviews WHERE book_id=$1
        ) s
        WHERE b.id=$1
        RETURNING b.average_rating, b.rating_count`
	var summary domain.RatingSummary
	err := tx.QueryRow(ctx, query, bookID).Scan(&summary.Average, &summary.Count)
	return summary, err
}

func scanReview(row pgx.Row, review *domain.Review) error {
	return row.Scan(
		&review.ID,
		&review.BookID,
		&review.UserID,
		&review.UserEmail,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
}
