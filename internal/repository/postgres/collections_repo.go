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

type collectionsRepo struct{ pool *pgxpool.Pool }

func NewCollections(pool *pgxpool.Pool) repository.Collections {
	return &collectionsRepo{pool: pool}
}

const collectionCols = `c.id, c.owner_id, c.title, c.created_at,
	(SELECT count(*) FROM collection_items i JOIN books b ON b.id = i.book_id
	  WHERE i.collection_id = c.id AND b.deleted_at IS NULL)`

func scanCollection(row pgx.Row) (models.Collection, error) {
	var c models.Collection
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.CreatedAt, &c.BookCount)
	return c, err
}

func insertItems(ctx context.Context, tx pgx.Tx, collectionID string, bookIDs []string) error {
	if len(bookIDs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, id := range bookIDs {
		batch.Queue(`INSERT INTO collection_items(collection_id, book_id) VALUES($1,$2) ON CONFLICT DO NOTHING`, collectionID, id)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *collectionsRepo) Create(ctx context.Context, c models.Collection, bookIDs []string) (models.Collection, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO collections(id, owner_id, title, created_at) VALUES($1,$2,$3,$4)`,
			c.ID, c.OwnerID, c.Title, c.CreatedAt,
		)
		if err != nil {
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
	c, err := scanCollection(r.pool.QueryRow(ctx, `SELECT `+collectionCols+` FROM collections c WHERE c.id=$1`, id))
	if err != nil {
		return models.Collection{}, mapErr(err, "collection")
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookCols+`
		   FROM collection_items i JOIN books b ON b.id = i.book_id
		  WHERE i.collection_id=$1 AND b.deleted_at IS NULL
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
	q.where("c.owner_id = " + q.arg(ownerID))
	if page.Cursor != "" {
		k, err := pagination.DecodeTimeKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.Collection]{}, err
		}
		q.where("(c.created_at, c.id) < (" + q.arg(k.At) + ", " + q.arg(k.ID) + ")")
	}
	limit := q.arg(page.Limit + 1)
	rows, err := r.pool.Query(ctx,
		`SELECT `+collectionCols+` FROM collections c`+q.clause()+` ORDER BY c.created_at DESC, c.id DESC LIMIT `+limit,
		q.args...,
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
	tag, err := r.pool.Exec(ctx, `UPDATE collections SET title=$2 WHERE id=$1`, id, title)
	if err != nil {
		return models.Collection{}, mapErr(err, "collection")
	}
	if tag.RowsAffected() == 0 {
		return models.Collection{}, fmt.Errorf("%w: collection", apperr.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r *collectionsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collections WHERE id=$1`, id)
	if err != nil {
		return mapErr(err, "collection")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: collection", apperr.ErrNotFound)
	}
	return nil
}

func (r *collectionsRepo) AddBooks(ctx context.Context, id string, bookIDs []string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return mapErr(insertItems(ctx, tx, id, bookIDs), "collection item")
	})
}

func (r *collectionsRepo) RemoveBook(ctx context.Context, id, bookID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collection_items WHERE collection_id=$1 AND book_id=$2`, id, bookID)
	if err != nil {
		return mapErr(err, "collection item")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: book is not in the collection", apperr.ErrNotFound)
	}
	return nil
}
