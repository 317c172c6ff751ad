package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	"github.com/baharkarakas/bookswap-backend/internal/repository"
)

type usersRepo struct{ pool *pgxpool.Pool }

func NewUsers(pool *pgxpool.Pool) repository.Users {
	return &usersRepo{pool: pool}
}

const userCols = `id, username, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *usersRepo) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users(id, username, password_hash, role, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$5)
		 RETURNING `+userCols,
		u.ID, u.Username, u.PasswordHash, u.Role, now,
	)
	out, err := scanUser(row)
	return out, mapErr(err, "user")
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	return u, mapErr(err, "user")
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username=$1`, username))
	return u, mapErr(err, "user")
}

func (r *usersRepo) List(ctx context.Context, page pagination.Request) (pagination.Page[models.User], error) {
	var q query
	if page.Cursor != "" {
		after, err := pagination.DecodeIDKey(page.Cursor)
		if err != nil {
			return pagination.Page[models.User]{}, err
		}
		q.where("id > " + q.arg(after))
	}
	limit := q.arg(page.Limit + 1)
	rows, err := r.pool.Query(ctx, `SELECT `+userCols+` FROM users`+q.clause()+` ORDER BY id LIMIT `+limit, q.args...)
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
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET role=$2, updated_at=now() WHERE id=$1 RETURNING `+userCols,
		id, role,
	)
	u, err := scanUser(row)
	return u, mapErr(err, "user")
}
