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

type collectionsRepo struct{ db *sql.DB }

const collectionCols = `c.id, c.owner_id, c.title, c.created_at,
	(SELECT count(*) FROM collection_items i JOIN books b ON b.id = i.book_id
	  WHERE i.collection_id = c.id AND b.deleted_at IS NULL)`

func scanCollection(row rowScanner) (models.Collection, error) {
	var c models.Collection
	var created int64
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &created, &c.BookCount); err != nil {
		return models.Collection{}, err
	}
	c.CreatedAt = fromMicros(created)
	return c, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, collectionID string, bookIDs []string) error {
	for _, id := range bookIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collection_items(collection_id, book_id) VALUES(?, ?) ON CONFLICT DO NOTHING`,
			collectionID, id,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *collectionsRepo) Create(ctx context.Context, c models.Collection, bookIDs []string) (models.Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO collections(id, owner_id, title, created_at) VALUES(?,?,?,?)`,
			c.ID, c.OwnerID, c.Title, micros(c.CreatedAt),
		); err != nil {
			return mapErr(err, "collection")
		}
		return mapErr(insertItems(ctx, tx, c.ID, bookIDs), "collection item")
	})
	if err != nil {
		return models.Collection{}, err
	}
	return r.GetByID(ctx, c.ID)
}

func (r *collectionsRepo) GetByID(ctx context.Context, id string) (models.Collection, error) {
	c, err := scanCollection(r.db.QueryRowContext(ctx, `SELECT `+collectionCols+` FROM collections c WHERE c.id = ?`, id))
	if err != nil {
		return models.Collection{}, mapErr(err, "collection")
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookCols+`
		   FROM collection_items i JOIN books b ON b.id = i.book_id
		  WHERE i.collection_id = ? AND b.deleted_at IS NULL
		  ORDER BY b.title, b.id`,
		id,
	)
	if err != nil {
		return models.Collection{}, mapErr(err, "collection books")
	}
	c.Books, err = collectBooks(rows)
	if err != nil {
		return models.Collection{}, mapErr(err, "collection books")
	}
	if c.Books == nil {
		c.Books = []models.Book{}
	}
	return c, nil
}

func (r *collectionsRepo) ListByOwner(ctx context.Context, ownerID string, page pagination.Request) (pagination.Page[models.Collection], error) {
	var q query
	q.where("c.owner_id = ?", ownerID)
	if page.Cursor != "" {
		k, err := pagination.DecodeTimeKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.Collection]{}, err
		}
		q.where("(c.created_at, c.id) < (?, ?)", micros(k.At), k.ID)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+collectionCols+` FROM collections c`+q.clause()+` ORDER BY c.created_at DESC, c.id DESC LIMIT ?`,
		append(q.args, page.Limit+1)...,
	)
	if err != nil {
		return pagination.Page[models.Collection]{}, mapErr(err, "collections")
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return pagination.Page[models.Collection]{}, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.Collection]{}, mapErr(err, "collections")
	}
	return pagination.Trim(out, page.Limit, func(c models.Collection) string {
		return pagination.EncodeTimeKey(pagination.TimeKey{At: c.CreatedAt, ID: c.ID})
	}), nil
}

func (r *collectionsRepo) Rename(ctx context.Context, id, title string) (models.Collection, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE collections SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return models.Collection{}, mapErr(err, "collection")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Collection{}, fmt.Errorf("%w: collection", apperr.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *collectionsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return mapErr(err, "collection")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: collection", apperr.ErrNotFound)
	}
	return nil
}

func (r *collectionsRepo) AddBooks(ctx context.Context, id string, bookIDs []string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return mapErr(insertItems(ctx, tx, id, bookIDs), "collection item")
	})
}

func (r *collectionsRepo) RemoveBook(ctx context.Context, id, bookID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collection_items WHERE collection_id = ? AND book_id = ?`, id, bookID)
	if err != nil {
		return mapErr(err, "collection item")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: book is not in the collection", apperr.ErrNotFound)
	}
	return nil
}
