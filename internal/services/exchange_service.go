package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/exchange"
	"github.com/baharkarakas/bookswap-backend/internal/metrics"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	repo "github.com/baharkarakas/bookswap-backend/internal/repository"
	"github.com/baharkarakas/bookswap-backend/internal/worker"
)

const entityTransaction = "transaction"

type ExchangeService struct {
	trx   repo.Transactions
	books repo.Books
	audit auditor
	idem  *lru.Cache[string, idemEntry] // user|Idempotency-Key
	now   func() time.Time
}

func NewExchangeService(t repo.Transactions, b repo.Books, l repo.AuditLogs, wp *worker.Pool, idemSize int, log *slog.Logger) (*ExchangeService, error) {
	s := &ExchangeService{
		trx:   t,
		books: b,
		audit: auditor{logs: l, wp: wp, log: log},
		now:   time.Now,
	}
	if idemSize > 0 {
		c, err := lru.New[string, idemEntry](idemSize)
		if err != nil {
			return nil, fmt.Errorf("idempotency cache: %w", err)
		}
		s.idem = c
	}
	return s, nil
}

// SetClock replaces the time source used for new proposals.
func (s *ExchangeService) SetClock(now func() time.Time) { s.now = now }

func (s *ExchangeService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// ----------------- Proposal -----------------

// Propose opens a pending exchange in which fromUserID asks for bookID.
// A non-empty idemKey makes retries of the same request return the first result;
// reusing it for a different book or place is a conflict.
func (s *ExchangeService) Propose(ctx context.Context, fromUserID, bookID, place, idemKey string) (models.Transaction, error) {
	req := idemEntry{bookID: bookID, place: strings.TrimSpace(place)}
	if tx, ok, err := s.replay(ctx, fromUserID, idemKey, req); err != nil || ok {
		return tx, err
	}

	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		countProposal(err)
		return models.Transaction{}, err
	}
	tx, err := exchange.Propose(fromUserID, book, place, s.timestamp())
	if err != nil {
		countProposal(err)
		return models.Transaction{}, err
	}
	tx, err = s.trx.Create(ctx, tx)
	if err != nil {
		// a concurrent retry with the same key may have won the insert
		if prev, ok, rerr := s.replay(ctx, fromUserID, idemKey, req); rerr != nil || ok {
			return prev, rerr
		}
		countProposal(err)
		return models.Transaction{}, err
	}
	countProposal(nil)

	if idemKey != "" && s.idem != nil {
		req.txID = tx.ID
		s.idem.Add(idemCacheKey(fromUserID, idemKey), req)
	}
	s.audit.record(entityTransaction, tx.ID, fromUserID, "proposed", map[string]any{
		"book_id": tx.BookID,
		"place":   tx.Place,
	})
	return tx, nil
}

// idemEntry remembers which request an idempotency key was first used for.
type idemEntry struct {
	txID   string
	bookID string
	place  string
}

func (e idemEntry) sameRequest(o idemEntry) bool {
	return e.bookID == o.bookID && e.place == o.place
}

func idemCacheKey(userID, key string) string { return userID + "|" + key }

// replay reports the transaction an earlier request with the same key created.
func (s *ExchangeService) replay(ctx context.Context, userID, key string, req idemEntry) (models.Transaction, bool, error) {
	if key == "" || s.idem == nil {
		return models.Transaction{}, false, nil
	}
	prev, ok := s.idem.Get(idemCacheKey(userID, key))
	if !ok {
		return models.Transaction{}, false, nil
	}
	if !prev.sameRequest(req) {
		return models.Transaction{}, false, fmt.Errorf("%w: idempotency key reused with a different request", apperr.ErrConflict)
	}
	tx, err := s.trx.GetByID(ctx, prev.txID)
	if err != nil {
		return models.Transaction{}, false, nil
	}
	return tx, true, nil
}

func countProposal(err error) {
	outcome := "created"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrInvalidProposal):
		outcome = "rejected"
	case errors.Is(err, apperr.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.ProposalsTotal.WithLabelValues(outcome).Inc()
}

// ----------------- Transitions -----------------

// Respond applies the book owner's accept or reject decision to a pending exchange.
func (s *ExchangeService) Respond(ctx context.Context, txID, actorID, decision string) (models.Transaction, error) {
	ev, err := exchange.ParseDecision(decision)
	if err != nil {
		return models.Transaction{}, err
	}
	return s.apply(ctx, txID, actorID, ev)
}

// Advance moves an accepted exchange forward: progress, complete or cancel.
func (s *ExchangeService) Advance(ctx context.Context, txID, actorID, event string) (models.Transaction, error) {
	ev, err := exchange.ParseAdvance(event)
	if err != nil {
		return models.Transaction{}, err
	}
	return s.apply(ctx, txID, actorID, ev)
}

func (s *ExchangeService) apply(ctx context.Context, txID, actorID string, ev exchange.Event) (models.Transaction, error) {
	tx, err := s.trx.GetByID(ctx, txID)
	if err != nil {
		countTransition(ev, err)
		return models.Transaction{}, err
	}
	next, err := exchange.Plan(tx, actorID, ev)
	if err != nil {
		countTransition(ev, err)
		return models.Transaction{}, err
	}
	moved, err := s.trx.UpdateStatus(ctx, tx.ID, tx.Status, next)
	if err != nil {
		countTransition(ev, err)
		return models.Transaction{}, err
	}
	if !moved {
		// lost the race: the exchange left tx.Status between our read and write
		err = fmt.Errorf("%w: exchange %s changed while applying %s", apperr.ErrIllegalTransition, tx.ID, ev)
		countTransition(ev, err)
		return models.Transaction{}, err
	}
	countTransition(ev, nil)

	prev := tx.Status
	updated, err := s.trx.GetByID(ctx, tx.ID)
	if err != nil {
		tx.Status = next
		updated = tx
	}
	s.audit.record(entityTransaction, tx.ID, actorID, "status_change", map[string]any{
		"event": string(ev),
		"from":  string(prev),
		"to":    string(next),
	})
	return updated, nil
}

func countTransition(ev exchange.Event, err error) {
	outcome := "applied"
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrForbidden):
		outcome = "forbidden"
	case errors.Is(err, apperr.ErrIllegalTransition):
		outcome = "illegal"
	case errors.Is(err, apperr.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	metrics.TransitionsTotal.WithLabelValues(string(ev), outcome).Inc()
}

// ----------------- Queries -----------------

// Get returns an exchange to one of its participants or an admin.
func (s *ExchangeService) Get(ctx context.Context, viewer models.Principal, txID string) (models.Transaction, error) {
	tx, err := s.trx.GetByID(ctx, txID)
	if err != nil {
		return models.Transaction{}, err
	}
	if !tx.IsParticipant(viewer.UserID) && !viewer.IsAdmin() {
		return models.Transaction{}, fmt.Errorf("%w: not a participant of exchange %s", apperr.ErrForbidden, txID)
	}
	return tx, nil
}

// Actions lists what viewer may do next on the exchange.
func (s *ExchangeService) Actions(tx models.Transaction, viewerID string) []exchange.Event {
	return exchange.Actions(tx, viewerID)
}

// History returns the audit trail of an exchange, oldest first.
func (s *ExchangeService) History(ctx context.Context, viewer models.Principal, txID string) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, viewer, txID); err != nil {
		return nil, err
	}
	return s.audit.logs.ListForEntity(ctx, entityTransaction, txID)
}

// List returns the viewer's exchanges in the current or archived bucket, newest first.
func (s *ExchangeService) List(ctx context.Context, viewerID string, bucket models.Bucket, page pagination.Request) (pagination.Page[models.Transaction], error) {
	statuses, ok := bucket.Statuses()
	if !ok {
		return pagination.Page[models.Transaction]{}, fmt.Errorf("%w: bucket must be current or archived", apperr.ErrValidation)
	}
	return s.trx.ListForUser(ctx, viewerID, statuses, normalize(page))
}

// ListAll is the admin view across every user. An empty status matches all.
func (s *ExchangeService) ListAll(ctx context.Context, status string, page pagination.Request) (pagination.Page[models.Transaction], error) {
	var statuses []models.TransactionStatus
	if status != "" {
		st := models.TransactionStatus(status)
		if !st.Valid() {
			return pagination.Page[models.Transaction]{}, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, status)
		}
		statuses = append(statuses, st)
	}
	return s.trx.ListAll(ctx, statuses, normalize(page))
}
