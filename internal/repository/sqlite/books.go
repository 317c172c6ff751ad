package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
)

type booksRepo struct{ db *sql.DB }

const bookCols = `b.id, b.title, b.author, b.category, b.year, b.owner_id, b.created_at, b.deleted_at`

func scanBook(row rowScanner) (models.Book, error) {
	var b models.Book
	var year, deleted sql.NullInt64
	var created int64
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &year, &b.OwnerID, &created, &deleted); err != nil {
		return models.Book{}, err
	}
	if year.Valid {
		y := int(year.Int64)
		b.Year = &y
	}
	b.CreatedAt = fromMicros(created)
	b.DeletedAt = nullMicros(deleted)
	return b, nil
}

func collectBooks(rows *sql.Rows) ([]models.Book, error) {
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

func nullYear(y *int) sql.NullInt64 {
	if y == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*y), Valid: true}
}

// notLocked returns the "no open exchange" predicate for books aliased b.
func notLocked() (string, []any) {
	cond, args := in("t.status", models.NonTerminalStatuses)
	return `NOT EXISTS (SELECT 1 FROM transactions t WHERE t.book_id = b.id AND ` + cond + `)`, args
}

func (r *booksRepo) Create(ctx context.Context, b models.Book) (models.Book, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books(id, title, author, category, year, owner_id, created_at) VALUES(?,?,?,?,?,?,?)`,
		b.ID, b.Title, b.Author, b.Category, nullYear(b.Year), b.OwnerID, micros(b.CreatedAt),
	)
	if err != nil {
		return models.Book{}, mapErr(err, "book")
	}
	return r.GetByID(ctx, b.ID)
}

func (r *booksRepo) GetByID(ctx context.Context, id string) (models.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, `SELECT `+bookCols+` FROM books b WHERE b.id = ?`, id))
	return b, mapErr(err, "book")
}

func (r *booksRepo) List(ctx context.Context, f models.BookFilter, page pagination.Request) (pagination.Page[models.Book], error) {
	var q query
	q.where("b.deleted_at IS NULL")
	if f.OwnerID != "" {
		q.where("b.owner_id = ?", f.OwnerID)
	}
	if f.Category != "" {
		q.where("b.category = ?", f.Category)
	}
	if f.Author != "" {
		q.where("b.author = ?", f.Author)
	}
	return r.page(ctx, q, page)
}

func (r *booksRepo) page(ctx context.Context, q query, page pagination.Request) (pagination.Page[models.Book], error) {
	if page.Cursor != "" {
		after, err := pagination.DecodeIDKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.Book]{}, err
		}
		q.where("b.id > ?", after)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookCols+` FROM books b`+q.clause()+` ORDER BY b.id LIMIT ?`,
		append(q.args, page.Limit+1)...,
	)
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
	res, err := r.db.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, category = ?, year = ? WHERE id = ? AND deleted_at IS NULL`,
		b.Title, b.Author, b.Category, nullYear(b.Year), b.ID,
	)
	if err != nil {
		return models.Book{}, mapErr(err, "book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Book{}, mapErr(sql.ErrNoRows, "book")
	}
	return r.GetByID(ctx, b.ID)
}

func (r *booksRepo) SoftDelete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var deleted sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT deleted_at FROM books WHERE id = ?`, id).Scan(&deleted); err != nil {
			return mapErr(err, "book")
		}
		if deleted.Valid {
			return fmt.Errorf("%w: book", apperr.ErrNotFound)
		}
		cond, args := in("status", models.NonTerminalStatuses)
		var locked int
		err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM transactions WHERE book_id = ? AND `+cond,
			append([]any{id}, args...)...,
		).Scan(&locked)
		if err != nil {
			return mapErr(err, "book")
		}
		if locked > 0 {
			return fmt.Errorf("%w: book is part of an open exchange", apperr.ErrConflict)
		}
		_, err = tx.ExecContext(ctx, `UPDATE books SET deleted_at = ? WHERE id = ?`, micros(time.Now()), id)
		return mapErr(err, "book")
	})
}

func (r *booksRepo) IsAvailable(ctx context.Context, id string) (bool, error) {
	cond, args := notLocked()
	var available bool
	err := r.db.QueryRowContext(ctx,
		`SELECT b.deleted_at IS NULL AND `+cond+` FROM books b WHERE b.id = ?`,
		append(args, id)...,
	).Scan(&available)
	return available, mapErr(err, "book")
}

func (r *booksRepo) ListAvailable(ctx context.Context, excludeUserID string, page pagination.Request) (pagination.Page[models.Book], error) {
	var q query
	q.where("b.deleted_at IS NULL")
	cond, args := notLocked()
	q.where(cond, args...)
	if excludeUserID != "" {
		q.where("b.owner_id <> ?", excludeUserID)
	}
	return r.page(ctx, q, page)
}
