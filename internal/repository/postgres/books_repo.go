package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	"github.com/baharkarakas/bookswap-backend/internal/repository"
)

type booksRepo struct{ pool *pgxpool.Pool }

func NewBooks(pool *pgxpool.Pool) repository.Books {
	return &booksRepo{pool: pool}
}

const bookCols = `b.id, b.title, b.author, b.category, b.year, b.owner_id, b.created_at, b.deleted_at`

// the book is not referenced by any open exchange
const notLocked = `NOT EXISTS (SELECT 1 FROM transactions t WHERE t.book_id = b.id AND t.status = ANY($1))`

func scanBook(row pgx.Row) (models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.Year, &b.OwnerID, &b.CreatedAt, &b.DeletedAt)
	return b, err
}

func collectBooks(rows pgx.Rows) ([]models.Book, error) {
	defer rows.Close()
	var out []models.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func bookCursor(b models.Book) string { return pagination.EncodeIDKey(b.ID) }

func (r *booksRepo) Create(ctx context.Context, b models.Book) (models.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO books AS b (id, title, author, category, year, owner_id, created_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+bookCols,
		b.ID, b.Title, b.Author, b.Category, b.Year, b.OwnerID, b.CreatedAt,
	)
	out, err := scanBook(row)
	return out, mapErr(err, "book")
}

func (r *booksRepo) GetByID(ctx context.Context, id string) (models.Book, error) {
	b, err := scanBook(r.pool.QueryRow(ctx, `SELECT `+bookCols+` FROM books b WHERE b.id=$1`, id))
	return b, mapErr(err, "book")
}

func (r *booksRepo) List(ctx context.Context, f models.BookFilter, page pagination.Request) (pagination.Page[models.Book], error) {
	var q query
	q.where("b.deleted_at IS NULL")
	if f.OwnerID != "" {
		q.where("b.owner_id = " + q.arg(f.OwnerID))
	}
	if f.Category != "" {
		q.where("b.category = " + q.arg(f.Category))
	}
	if f.Author != "" {
		q.where("b.author = " + q.arg(f.Author))
	}
	if page.Cursor != "" {
		after, err := pagination.DecodeIDKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.Book]{}, err
		}
		q.where("b.id > " + q.arg(after))
	}
	limit := q.arg(page.Limit + 1)
	rows, err := r.pool.Query(ctx, `SELECT `+bookCols+` FROM books b`+q.clause()+` ORDER BY b.id LIMIT `+limit, q.args...)
	if err != nil {
		return pagination.Page[models.Book]{}, mapErr(err, "books")
	}
	out, err := collectBooks(rows)
	if err != nil {
		return pagination.Page[models.Book]{}, mapErr(err, "books")
	}
	return pagination.Trim(out, page.Limit, bookCursor), nil
}

func (r *booksRepo) Update(ctx context.Context, b models.Book) (models.Book, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE books AS b SET title=$2, author=$3, category=$4, year=$5
		  WHERE b.id=$1 AND b.deleted_at IS NULL
		  RETURNING `+bookCols,
		b.ID, b.Title, b.Author, b.Category, b.Year,
	)
	out, err := scanBook(row)
	return out, mapErr(err, "book")
}

// SoftDelete holds the book row lock so a concurrent proposal either commits first
// (and blocks the delete) or sees deleted_at afterwards.
func (r *booksRepo) SoftDelete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var deletedAt *time.Time
		err := tx.QueryRow(ctx, `SELECT deleted_at FROM books WHERE id=$1 FOR UPDATE`, id).Scan(&deletedAt)
		if err != nil {
			return mapErr(err, "book")
		}
		if deletedAt != nil {
			return fmt.Errorf("%w: book", apperr.ErrNotFound)
		}
		var locked bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM transactions WHERE book_id=$1 AND status = ANY($2))`,
			id, openStatuses,
		).Scan(&locked)
		if err != nil {
			return mapErr(err, "book")
		}
		if locked {
			return fmt.Errorf("%w: book is part of an open exchange", apperr.ErrConflict)
		}
		_, err = tx.Exec(ctx, `UPDATE books SET deleted_at=now() WHERE id=$1`, id)
		return mapErr(err, "book")
	})
}

func (r *booksRepo) IsAvailable(ctx context.Context, id string) (bool, error) {
	var available bool
	err := r.pool.QueryRow(ctx,
		`SELECT b.deleted_at IS NULL AND `+notLocked+` FROM books b WHERE b.id=$2`,
		openStatuses, id,
	).Scan(&available)
	return available, mapErr(err, "book")
}

func (r *booksRepo) ListAvailable(ctx context.Context, excludeUserID string, page pagination.Request) (pagination.Page[models.Book], error) {
	var q query
	q.arg(openStatuses) // $1, used by notLocked
	q.where("b.deleted_at IS NULL")
	q.where(notLocked)
	if excludeUserID != "" {
		q.where("b.owner_id <> " + q.arg(excludeUserID))
	}
	if page.Cursor != "" {
		after, err := pagination.DecodeIDKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.Book]{}, err
		}
		q.where("b.id > " + q.arg(after))
	}
	limit := q.arg(page.Limit + 1)
	rows, err := r.pool.Query(ctx, `SELECT `+bookCols+` FROM books b`+q.clause()+` ORDER BY b.id LIMIT `+limit, q.args...)
	if err != nil {
		return pagination.Page[models.Book]{}, mapErr(err, "books")
	}
	out, err := collectBooks(rows)
	if err != nil {
		return pagination.Page[models.Book]{}, mapErr(err, "books")
	}
	return pagination.Trim(out, page.Limit, bookCursor), nil
}
