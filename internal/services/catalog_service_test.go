package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
)

func TestCatalogCreateValidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "owner")

	_, err := f.catalog.Create(ctx, u.ID, models.Book{Title: " ", Author: "A", Category: "c"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	bad := -1
	_, err = f.catalog.Create(ctx, u.ID, models.Book{Title: "T", Author: "A", Category: "c", Year: &bad})
	require.ErrorIs(t, err, apperr.ErrValidation)

	b, err := f.catalog.Create(ctx, u.ID, models.Book{ID: "ignored", Title: " Dune ", Author: "Herbert", Category: "scifi", OwnerID: "someone-else"})
	require.NoError(t, err)
	require.NotEqual(t, "ignored", b.ID)
	require.Equal(t, "Dune", b.Title)
	require.Equal(t, u.ID, b.OwnerID)
}

func TestCatalogUpdateOwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, other := f.user(t, "owner"), f.user(t, "other")
	b := f.book(t, owner, "Old title")

	_, err := f.catalog.Update(ctx, other.ID, models.Book{ID: b.ID, Title: "New", Author: "A", Category: "c"})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := f.catalog.Update(ctx, owner.ID, models.Book{ID: b.ID, Title: "New", Author: "A", Category: "c"})
	require.NoError(t, err)
	require.Equal(t, "New", got.Title)
	require.Equal(t, owner.ID, got.OwnerID)
}

func TestCatalogDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, reader, other := f.user(t, "owner"), f.user(t, "reader"), f.user(t, "other")
	admin, err := f.users.SetRole(ctx, f.user(t, "admin").ID, models.RoleAdmin)
	require.NoError(t, err)
	b := f.book(t, owner, "Book")

	require.ErrorIs(t, f.catalog.Delete(ctx, principal(other), b.ID), apperr.ErrForbidden)

	tx, err := f.exchanges.Propose(ctx, reader.ID, b.ID, "Cafe", "")
	require.NoError(t, err)
	require.ErrorIs(t, f.catalog.Delete(ctx, principal(owner), b.ID), apperr.ErrConflict)

	_, err = f.exchanges.Respond(ctx, tx.ID, owner.ID, "reject")
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, principal(admin), b.ID))

	_, err = f.catalog.Get(ctx, b.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.NotContains(t, f.availableIDs(t, reader.ID), b.ID)

	// the exchange record survives its book
	_, err = f.exchanges.Get(ctx, principal(reader), tx.ID)
	require.NoError(t, err)
}

func TestAvailableBooksWalksAllPages(t *testing.T) {
	f := newFixture(t)
	owner, viewer := f.user(t, "owner"), f.user(t, "viewer")
	want := map[string]bool{}
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		want[f.book(t, owner, title).ID] = true
	}
	f.book(t, viewer, "own")

	got := f.availableIDs(t, viewer.ID)
	require.Len(t, got, len(want))
	for _, id := range got {
		require.True(t, want[id])
	}

	p, err := f.catalog.ListAvailable(context.Background(), viewer.ID, pagination.Request{Limit: 3})
	require.NoError(t, err)
	require.Len(t, p.Items, 3)
	require.NotEmpty(t, p.NextCursor)
}

func TestCatalogListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner, other := f.user(t, "owner"), f.user(t, "other")
	f.book(t, owner, "mine")
	f.book(t, other, "theirs")

	p, err := f.catalog.List(ctx, models.BookFilter{OwnerID: owner.ID}, pagination.Request{})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	require.Equal(t, "mine", p.Items[0].Title)

	p, err = f.catalog.List(ctx, models.BookFilter{Category: "novel"}, pagination.Request{})
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
}
