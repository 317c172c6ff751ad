package postgres

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
)

const openBookIndex = "transactions_open_book_uidx"

// mapErr translates driver errors into apperr kinds. what names the entity for messages.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", apperr.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == openBookIndex {
				return fmt.Errorf("%w: book is already part of an open exchange", apperr.ErrInvalidProposal)
			}
			return fmt.Errorf("%w: %s already exists", apperr.ErrConflict, what)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s references a missing record", apperr.ErrNotFound, what)
		case pgerrcode.InvalidTextRepresentation:
			// malformed uuid in a lookup
			return fmt.Errorf("%w: %s", apperr.ErrNotFound, what)
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
			return fmt.Errorf("%w: %s", apperr.ErrValidation, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// query accumulates WHERE conditions with positional arguments.
type query struct {
	conds []string
	args  []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) where(cond string) { q.conds = append(q.conds, cond) }

func (q *query) clause() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.conds, " AND ")
}

func statusStrings(in []models.TransactionStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

var openStatuses = statusStrings(models.NonTerminalStatuses)
