package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/bookswap-backend/internal/auth"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/repository"
	"github.com/baharkarakas/bookswap-backend/internal/repository/sqlite"
)

type fixture struct {
	repos     repository.Set
	users     *UserService
	catalog   *CatalogService
	exchanges *ExchangeService
	cols      *CollectionService
}

// newFixture wires the services over a fresh SQLite store. Audit writes run inline
// so tests can read them back immediately.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "bookswap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	repos := st.Repositories()

	tm := auth.NewTokenManager("access-secret", "refresh-secret", "test", time.Minute, time.Hour)
	ex, err := NewExchangeService(repos.Transactions, repos.Books, repos.AuditLogs, nil, 128, nil)
	require.NoError(t, err)
	return &fixture{
		repos:     repos,
		users:     NewUserService(repos.Users, tm),
		catalog:   NewCatalogService(repos.Books, repos.AuditLogs, nil, nil),
		exchanges: ex,
		cols:      NewCollectionService(repos.Collections, repos.Books),
	}
}

func (f *fixture) user(t *testing.T, name string) models.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), name, "password123")
	require.NoError(t, err)
	return u
}

func (f *fixture) book(t *testing.T, owner models.User, title string) models.Book {
	t.Helper()
	b, err := f.catalog.Create(context.Background(), owner.ID, models.Book{Title: title, Author: "Someone", Category: "novel"})
	require.NoError(t, err)
	return b
}

func (f *fixture) availableIDs(t *testing.T, viewerID string) []string {
	t.Helper()
	var ids []string
	for b, err := range f.catalog.AvailableBooks(context.Background(), viewerID, 2) {
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}
	return ids
}

func principal(u models.User) models.Principal {
	return models.Principal{UserID: u.ID, Role: u.Role}
}
