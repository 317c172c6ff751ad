package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/exchange"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
)

func TestProposeLocksBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "user-one"), f.user(t, "user-two"), f.user(t, "user-three")
	book := f.book(t, u2, "Book Five")

	require.Contains(t, f.availableIDs(t, u1.ID), book.ID)

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe X", "")
	require.NoError(t, err)
	require.Equal(t, models.TxnPending, tx.Status)
	require.Equal(t, u1.ID, tx.FromUserID)
	require.Equal(t, u2.ID, tx.ToUserID)
	require.Equal(t, "Cafe X", tx.Place)

	require.NotContains(t, f.availableIDs(t, u3.ID), book.ID)
	avail, err := f.catalog.IsAvailable(ctx, book.ID)
	require.NoError(t, err)
	require.False(t, avail)

	_, err = f.exchanges.Propose(ctx, u3.ID, book.ID, "Park", "")
	require.ErrorIs(t, err, apperr.ErrInvalidProposal)
}

func TestProposeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	book := f.book(t, u2, "Book")

	_, err := f.exchanges.Propose(ctx, u2.ID, book.ID, "Cafe", "")
	require.ErrorIs(t, err, apperr.ErrInvalidProposal)

	_, err = f.exchanges.Propose(ctx, u1.ID, book.ID, "  ", "")
	require.ErrorIs(t, err, apperr.ErrInvalidProposal)

	_, err = f.exchanges.Propose(ctx, u1.ID, "missing-book", "Cafe", "")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// a deleted book reads the same through the catalog and through a proposal
	require.NoError(t, f.catalog.Delete(ctx, principal(u2), book.ID))
	_, err = f.catalog.Get(ctx, book.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentProposalsOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3, u4 := f.user(t, "user-one"), f.user(t, "user-two"), f.user(t, "user-three"), f.user(t, "user-four")
	book := f.book(t, u2, "Book Five")

	// an earlier exchange that ends in cancellation frees the book
	first, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe X", "")
	require.NoError(t, err)
	_, err = f.exchanges.Respond(ctx, first.ID, u2.ID, "accept")
	require.NoError(t, err)
	_, err = f.exchanges.Advance(ctx, first.ID, u1.ID, "cancel")
	require.NoError(t, err)

	var wins, invalid atomic.Int32
	var g errgroup.Group
	for _, u := range []models.User{u3, u4} {
		g.Go(func() error {
			_, err := f.exchanges.Propose(ctx, u.ID, book.ID, "Library", "")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperr.ErrInvalidProposal):
				invalid.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, 1, invalid.Load())

	open, err := f.repos.Transactions.ListAll(ctx, models.NonTerminalStatuses, pagination.Request{Limit: 10})
	require.NoError(t, err)
	require.Len(t, open.Items, 1)
}

func TestRejectFreesBook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "user-one"), f.user(t, "user-two"), f.user(t, "user-three")
	book := f.book(t, u2, "Book Five")

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe X", "")
	require.NoError(t, err)

	tx, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "reject")
	require.NoError(t, err)
	require.Equal(t, models.TxnRejected, tx.Status)
	require.Contains(t, f.availableIDs(t, u3.ID), book.ID)

	_, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "accept")
	require.ErrorIs(t, err, apperr.ErrIllegalTransition)
}

func TestCancelAfterAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	book := f.book(t, u2, "Book Five")

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe X", "")
	require.NoError(t, err)
	tx, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "accept")
	require.NoError(t, err)
	require.Equal(t, models.TxnAccepted, tx.Status)
	require.NotContains(t, f.availableIDs(t, u1.ID), book.ID)

	tx, err = f.exchanges.Advance(ctx, tx.ID, u1.ID, "cancel")
	require.NoError(t, err)
	require.Equal(t, models.TxnCanceled, tx.Status)
	require.True(t, tx.Status.Terminal())
	require.Contains(t, f.availableIDs(t, u1.ID), book.ID)
}

func TestNonParticipantIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "user-one"), f.user(t, "user-two"), f.user(t, "user-three")
	book := f.book(t, u2, "Book")

	tx, err := f.exchanges.Propose(ctx, u3.ID, book.ID, "Cafe", "")
	require.NoError(t, err)
	_, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "accept")
	require.NoError(t, err)

	_, err = f.exchanges.Advance(ctx, tx.ID, u1.ID, "complete")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.exchanges.Get(ctx, principal(u1), tx.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := f.exchanges.Get(ctx, principal(u3), tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxnAccepted, got.Status)
}

func TestOnlyOwnerRespondsToProposal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	book := f.book(t, u2, "Book")

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "")
	require.NoError(t, err)

	_, err = f.exchanges.Respond(ctx, tx.ID, u1.ID, "accept")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "maybe")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.exchanges.Advance(ctx, tx.ID, u2.ID, "complete")
	require.ErrorIs(t, err, apperr.ErrIllegalTransition)

	got, err := f.repos.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxnPending, got.Status)
}

func TestCompleteTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	book := f.book(t, u2, "Book")

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "")
	require.NoError(t, err)
	_, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "accept")
	require.NoError(t, err)
	_, err = f.exchanges.Advance(ctx, tx.ID, u1.ID, "progress")
	require.NoError(t, err)

	done, err := f.exchanges.Advance(ctx, tx.ID, u2.ID, "complete")
	require.NoError(t, err)
	require.Equal(t, models.TxnCompleted, done.Status)

	_, err = f.exchanges.Advance(ctx, tx.ID, u1.ID, "complete")
	require.ErrorIs(t, err, apperr.ErrIllegalTransition)

	got, err := f.repos.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxnCompleted, got.Status)

	// the book stays with its owner
	b, err := f.catalog.Get(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, u2.ID, b.OwnerID)
}

func TestConcurrentCompleteAndCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	book := f.book(t, u2, "Book")

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "")
	require.NoError(t, err)
	_, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "accept")
	require.NoError(t, err)

	var applied, illegal atomic.Int32
	var g errgroup.Group
	for _, step := range []struct {
		actor string
		ev    string
	}{{u1.ID, "complete"}, {u2.ID, "cancel"}} {
		g.Go(func() error {
			_, err := f.exchanges.Advance(ctx, tx.ID, step.actor, step.ev)
			switch {
			case err == nil:
				applied.Add(1)
			case errors.Is(err, apperr.ErrIllegalTransition):
				illegal.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, applied.Load())
	require.EqualValues(t, 1, illegal.Load())

	got, err := f.repos.Transactions.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.True(t, got.Status.Terminal())
}

func TestIdempotentPropose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := f.user(t, "user-one"), f.user(t, "user-two"), f.user(t, "user-three")
	book := f.book(t, u2, "Book")

	first, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "key-1")
	require.NoError(t, err)
	again, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "key-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	// surrounding whitespace in place does not make it a different request
	again, err = f.exchanges.Propose(ctx, u1.ID, book.ID, "  Cafe ", "key-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	// keys are scoped per user
	_, err = f.exchanges.Propose(ctx, u3.ID, book.ID, "Cafe", "key-1")
	require.ErrorIs(t, err, apperr.ErrInvalidProposal)
}

func TestIdempotencyKeyReusedForOtherRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	book := f.book(t, u2, "Book")
	other := f.book(t, u2, "Other")

	first, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "key-1")
	require.NoError(t, err)

	_, err = f.exchanges.Propose(ctx, u1.ID, other.ID, "Elsewhere", "key-1")
	require.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.exchanges.Propose(ctx, u1.ID, book.ID, "Elsewhere", "key-1")
	require.ErrorIs(t, err, apperr.ErrConflict)

	// nothing was opened for the second book
	avail, err := f.catalog.IsAvailable(ctx, other.ID)
	require.NoError(t, err)
	require.True(t, avail)

	// a fresh key proposes normally
	tx, err := f.exchanges.Propose(ctx, u1.ID, other.ID, "Elsewhere", "key-2")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, tx.ID)
	require.Equal(t, other.ID, tx.BookID)
}

func TestListBuckets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	f.exchanges.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		b := f.book(t, u2, title)
		tx, err := f.exchanges.Propose(ctx, u1.ID, b.ID, "Cafe", "")
		require.NoError(t, err)
		ids = append(ids, tx.ID)
	}
	_, err := f.exchanges.Respond(ctx, ids[0], u2.ID, "reject")
	require.NoError(t, err)

	current, err := f.exchanges.List(ctx, u1.ID, models.BucketCurrent, pagination.Request{})
	require.NoError(t, err)
	require.Len(t, current.Items, 2)
	require.Equal(t, ids[2], current.Items[0].ID)
	require.Equal(t, ids[1], current.Items[1].ID)

	archived, err := f.exchanges.List(ctx, u2.ID, models.BucketArchived, pagination.Request{})
	require.NoError(t, err)
	require.Len(t, archived.Items, 1)
	require.Equal(t, ids[0], archived.Items[0].ID)

	_, err = f.exchanges.List(ctx, u1.ID, models.BucketAvailable, pagination.Request{})
	require.ErrorIs(t, err, apperr.ErrValidation)

	all, err := f.exchanges.ListAll(ctx, "", pagination.Request{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	require.NotEmpty(t, all.NextCursor)

	_, err = f.exchanges.ListAll(ctx, "lost", pagination.Request{})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAdminCanReadAnyExchange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, admin := f.user(t, "user-one"), f.user(t, "user-two"), f.user(t, "admin-user")
	admin, err := f.users.SetRole(ctx, admin.ID, models.RoleAdmin)
	require.NoError(t, err)
	book := f.book(t, u2, "Book")

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "")
	require.NoError(t, err)

	got, err := f.exchanges.Get(ctx, principal(admin), tx.ID)
	require.NoError(t, err)
	require.Equal(t, tx.ID, got.ID)
	require.Empty(t, f.exchanges.Actions(got, admin.ID))

	// admins read but do not act
	_, err = f.exchanges.Respond(ctx, tx.ID, admin.ID, "accept")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestHistoryRecordsTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1, u2 := f.user(t, "user-one"), f.user(t, "user-two")
	book := f.book(t, u2, "Book")

	tx, err := f.exchanges.Propose(ctx, u1.ID, book.ID, "Cafe", "")
	require.NoError(t, err)
	_, err = f.exchanges.Respond(ctx, tx.ID, u2.ID, "accept")
	require.NoError(t, err)

	logs, err := f.exchanges.History(ctx, principal(u1), tx.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "proposed", logs[0].Action)
	require.Equal(t, "status_change", logs[1].Action)
	require.Equal(t, string(exchange.EventAccept), logs[1].Details["event"])
	require.Equal(t, u2.ID, logs[1].ActorID)
}
