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

type transactionsRepo struct{ db *sql.DB }

const txnCols = `id, from_user_id, to_user_id, book_id, place, status, created_at, updated_at`

func scanTxn(row rowScanner) (models.Transaction, error) {
	var t models.Transaction
	var created, updated int64
	if err := row.Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.BookID, &t.Place, &t.Status, &created, &updated); err != nil {
		return models.Transaction{}, err
	}
	t.CreatedAt, t.UpdatedAt = fromMicros(created), fromMicros(updated)
	return t, nil
}

func txnCursor(t models.Transaction) string {
	return pagination.EncodeTimeKey(pagination.TimeKey{At: t.CreatedAt, ID: t.ID})
}

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
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var ownerID string
		var deleted sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT owner_id, deleted_at FROM books WHERE id = ?`, t.BookID).Scan(&ownerID, &deleted)
		if err != nil {
			return mapErr(err, "book")
		}
		if deleted.Valid {
			return fmt.Errorf("%w: book", apperr.ErrNotFound)
		}
		if ownerID != t.ToUserID {
			return fmt.Errorf("%w: book changed owner", apperr.ErrInvalidProposal)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (`+txnCols+`) VALUES (?,?,?,?,?,?,?,?)`,
			t.ID, t.FromUserID, t.ToUserID, t.BookID, t.Place, string(t.Status), micros(t.CreatedAt), micros(t.UpdatedAt),
		)
		return mapErr(err, "transaction")
	})
	if err != nil {
		return models.Transaction{}, err
	}
	return r.GetByID(ctx, t.ID)
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	t, err := scanTxn(r.db.QueryRowContext(ctx, `SELECT `+txnCols+` FROM transactions WHERE id = ?`, id))
	return t, mapErr(err, "transaction")
}

func (r *transactionsRepo) ListForUser(ctx context.Context, userID string, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error) {
	var q query
	q.where("(from_user_id = ? OR to_user_id = ?)", userID, userID)
	return r.list(ctx, q, statuses, page)
}

func (r *transactionsRepo) ListAll(ctx context.Context, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error) {
	return r.list(ctx, query{}, statuses, page)
}

func (r *transactionsRepo) list(ctx context.Context, q query, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error) {
	if len(statuses) > 0 {
		cond, args := in("status", statuses)
		q.where(cond, args...)
	}
	if page.Cursor != "" {
		k, err := pagination.DecodeTimeKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.Transaction]{}, err
		}
		q.where("(created_at, id) < (?, ?)", micros(k.At), k.ID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txnCols+` FROM transactions`+q.clause()+` ORDER BY created_at DESC, id DESC LIMIT ?`,
		append(q.args, page.Limit+1)...,
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

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), micros(time.Now()), id, string(from),
	)
	if err != nil {
		return false, mapErr(err, "transaction")
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
