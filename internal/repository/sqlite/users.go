package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
)

type usersRepo struct{ db *sql.DB }

const userCols = `id, username, password_hash, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &created, &updated); err != nil {
		return models.User{}, err
	}
	u.CreatedAt, u.UpdatedAt = fromMicros(created), fromMicros(updated)
	return u, nil
}

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users(id, username, password_hash, role, created_at, updated_at) VALUES(?,?,?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.Role, micros(now), micros(now),
	)
	if err != nil {
		return models.User{}, mapErr(err, "user")
	}
	return r.GetByID(ctx, u.ID)
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id))
	return u, mapErr(err, "user")
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username))
	return u, mapErr(err, "user")
}

func (r *usersRepo) List(ctx context.Context, page pagination.Request) (pagination.Page[models.User], error) {
	var q query
	if page.Cursor != "" {
		after, err := pagination.DecodeIDKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.User]{}, err
		}
		q.where("id > ?", after)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users`+q.clause()+` ORDER BY id LIMIT ?`,
		append(q.args, page.Limit+1)...,
	)
	if err != nil {
		return pagination.Page[models.User]{}, mapErr(err, "users")
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return pagination.Page[models.User]{}, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[models.User]{}, mapErr(err, "users")
	}
	return pagination.Trim(out, page.Limit, func(u models.User) string { return pagination.EncodeIDKey(u.ID) }), nil
}

func (r *usersRepo) UpdateRole(ctx context.Context, id, role string) (models.User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		role, micros(time.Now()), id,
	)
	if err != nil {
		return models.User{}, mapErr(err, "user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, mapErr(sql.ErrNoRows, "user")
	}
	return r.GetByID(ctx, id)
}
