package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookshelf-labs/library-service/internal/domain"
)

// BookRepository encapsulates catalog persistence.
type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	List(ctx context.Context, query domain.BookQuery) ([]domain.Book, int, error)
	Delete(ctx context.Context, id string) error
	SetPDFPath(ctx context.Context, id, pdfPath string) error
}

type bookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository instantiates repository.
func NewBookRepository(pool *pgxpool.Pool) BookRepository {
	return &bookRepository{pool: pool}
}

const bookColumns = `id, title, author, description, published_year, pdf_path,
               average_rating, rating_count, created_at, updated_at`

func (r *bookRepository) Create(ctx context.Context, book *domain.Book) error {
	const query = `
        INSERT INTO books (id, title, author, description, published_year)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		book.ID,
		book.Title,
		book.Author,
		book.Description,
		book.PublishedYear,
	).Scan(&book.CreatedAt, &book.UpdatedAt)
}

func (r *bookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id=$1`, id)
	var book domain.Book
	if err := scanBook(row, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) List(ctx context.Context, q domain.BookQuery) ([]domain.Book, int, error) {
	q = q.Normalize()
	where, args := bookFilter(q.Search)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM books WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		bookColumns, where, q.Size, q.Offset())
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Book
	for rows.Next() {
		var book domain.Book
		if err := scanBook(rows, &book); err != nil {
			return nil, 0, err
		}
		result = append(result, book)
	}
	return result, total, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// bookFilter builds the WHERE clause for a catalog search. The term matches
// title or author as a literal, case-insensitive substring.
func bookFilter(search string) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(search))+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			`(LOWER(title) LIKE %s ESCAPE '\' OR LOWER(author) LIKE %s ESCAPE '\')`, placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *bookRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *bookRepository) SetPDFPath(ctx context.Context, id, pdfPath string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE books SET pdf_path=$1, updated_at=NOW() WHERE id=$2`, pdfPath, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanBook(row pgx.Row, book *domain.Book) error {
	return row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Description,
		&book.PublishedYear,
		&book.PDFPath,
		&book.AverageRating,
		&book.RatingCount,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
}
