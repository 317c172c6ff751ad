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

type transactionsRepo struct{ pool *pgxpool.Pool }

func NewTransactions(pool *pgxpool.Pool) repository.Transactions {
	return &transactionsRepo{pool: pool}
}

const txnCols = `id, from_user_id, to_user_id, book_id, place, status, created_at, updated_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.BookID, &t.Place, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func txnCursor(t models.Transaction) string {
	return pagination.EncodeTimeKey(pagination.TimeKey{At: t.CreatedAt, ID: t.ID})
}

// Create locks the book row in share mode so a concurrent soft delete cannot slip
// between the listing check and the insert. Two proposals for the same book are
// serialized by transactions_open_book_uidx.
func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	var out models.Transaction
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var ownerID string
		var deletedAt *time.Time
		err := tx.QueryRow(ctx, `SELECT owner_id, deleted_at FROM books WHERE id=$1 FOR SHARE`, t.BookID).Scan(&ownerID, &deletedAt)
		if err != nil {
			return mapErr(err, "book")
		}
		if deletedAt != nil {
			return fmt.Errorf("%w: book", apperr.ErrNotFound)
		}
		if ownerID != t.ToUserID {
			return fmt.Errorf("%w: book changed owner", apperr.ErrInvalidProposal)
		}

		row := tx.QueryRow(ctx,
			`INSERT INTO transactions (`+txnCols+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 RETURNING `+txnCols,
			t.ID, t.FromUserID, t.ToUserID, t.BookID, t.Place, t.Status, t.CreatedAt, t.UpdatedAt,
		)
		out, err = scanTxn(row)
		return mapErr(err, "transaction")
	})
	return out, err
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	t, err := scanTxn(r.pool.QueryRow(ctx, `SELECT `+txnCols+` FROM transactions WHERE id=$1`, id))
	return t, mapErr(err, "transaction")
}

func (r *transactionsRepo) ListForUser(ctx context.Context, userID string, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error) {
	var q query
	p := q.arg(userID)
	q.where("(from_user_id = " + p + " OR to_user_id = " + p + ")")
	return r.list(ctx, q, statuses, page)
}

func (r *transactionsRepo) ListAll(ctx context.Context, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error) {
	return r.list(ctx, query{}, statuses, page)
}

func (r *transactionsRepo) list(ctx context.Context, q query, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error) {
	if len(statuses) > 0 {
		q.where("status = ANY(" + q.arg(statusStrings(statuses)) + ")")
	}
	if page.Cursor != "" {
		k, err := pagination.DecodeTimeKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.Transaction]{}, err
		}
		q.where("(created_at, id) < (" + q.arg(k.At) + ", " + q.arg(k.ID) + ")")
	}
	limit := q.arg(page.Limit + 1)
	rows, err := r.pool.Query(ctx,
		`SELECT `+txnCols+` FROM transactions`+q.clause()+` ORDER BY created_at DESC, id DESC LIMIT `+limit,
		q.args...,
	)
	if err != nil {
		return pagination.Page[models.Transaction]{}, mapErr(err, "transactions")
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return pagination.Page[models.Transaction]{}, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.Transaction]{}, mapErr(err, "transactions")
	}
	return pagination.Trim(out, page.Limit, txnCursor), nil
}

// UpdateStatus is a compare-and-swap on status; no row lock outlives the statement.
func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`,
		id, from, to,
	)
	if err != nil {
		return false, mapErr(err, "transaction")
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
