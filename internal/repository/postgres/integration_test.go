package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/db"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	"github.com/baharkarakas/bookswap-backend/internal/repository"
)

// openTestPool connects to BOOKSWAP_TEST_DATABASE_URL and resets the schema's data.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("BOOKSWAP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BOOKSWAP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, 8)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.RunMigrations(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE audit_logs, collection_items, collections, transactions, books, users CASCADE`)
	require.NoError(t, err)
	return pool
}

func seed(t *testing.T, repos repository.Set, names ...string) []models.User {
	t.Helper()
	var out []models.User
	for _, n := range names {
		u, err := repos.Users.Create(context.Background(), models.User{Username: n, PasswordHash: "x", Role: models.RoleUser})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func TestPostgresOpenExchangeRace(t *testing.T) {
	repos := NewRepositories(openTestPool(t))
	ctx := context.Background()
	users := seed(t, repos, "owner", "reader-a", "reader-b")
	owner := users[0]
	book, err := repos.Books.Create(ctx, models.Book{Title: "Dune", Author: "Herbert", Category: "scifi", OwnerID: owner.ID})
	require.NoError(t, err)

	results := make([]error, 2)
	var g errgroup.Group
	for i, reader := range users[1:] {
		g.Go(func() error {
			_, results[i] = repos.Transactions.Create(ctx, models.Transaction{
				FromUserID: reader.ID, ToUserID: owner.ID, BookID: book.ID, Place: "cafe", Status: models.TxnPending,
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, invalid int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrInvalidProposal):
			invalid++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, invalid)

	require.ErrorIs(t, repos.Books.SoftDelete(ctx, book.ID), apperr.ErrConflict)
}

func TestPostgresStatusCompareAndSwap(t *testing.T) {
	repos := NewRepositories(openTestPool(t))
	ctx := context.Background()
	users := seed(t, repos, "owner", "reader")
	book, err := repos.Books.Create(ctx, models.Book{Title: "Emma", Author: "Austen", Category: "classic", OwnerID: users[0].ID})
	require.NoError(t, err)
	tx, err := repos.Transactions.Create(ctx, models.Transaction{
		FromUserID: users[1].ID, ToUserID: users[0].ID, BookID: book.ID, Place: "park", Status: models.TxnPending,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	require.NoError(t, err)

	moved, err := repos.Transactions.UpdateStatus(ctx, tx.ID, models.TxnPending, models.TxnAccepted)
	require.NoError(t, err)
	require.True(t, moved)
	moved, err = repos.Transactions.UpdateStatus(ctx, tx.ID, models.TxnPending, models.TxnRejected)
	require.NoError(t, err)
	require.False(t, moved)

	p, err := repos.Transactions.ListForUser(ctx, users[1].ID, models.NonTerminalStatuses, pagination.Request{Limit: 10})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	require.Equal(t, models.TxnAccepted, p.Items[0].Status)

	_, err = repos.Transactions.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
