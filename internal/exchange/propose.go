package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
)

const maxPlaceLen = 255

// Propose builds the pending transaction for fromUserID asking for book.
// Book availability is enforced by the store on insert, not here.
func Propose(fromUserID string, book models.Book, place string, now time.Time) (models.Transaction, error) {
	place = strings.TrimSpace(place)
	switch {
	case fromUserID == "":
		return models.Transaction{}, fmt.Errorf("%w: missing initiator", apperr.ErrInvalidProposal)
	case book.DeletedAt != nil:
		return models.Transaction{}, fmt.Errorf("%w: book %s", apperr.ErrNotFound, book.ID)
	case book.OwnerID == fromUserID:
		return models.Transaction{}, fmt.Errorf("%w: cannot propose an exchange for your own book", apperr.ErrInvalidProposal)
	case place == "":
		return models.Transaction{}, fmt.Errorf("%w: place is required", apperr.ErrInvalidProposal)
	case len(place) > maxPlaceLen:
		return models.Transaction{}, fmt.Errorf("%w: place is too long", apperr.ErrInvalidProposal)
	}
	return models.Transaction{
		FromUserID: fromUserID,
		ToUserID:   book.OwnerID,
		BookID:     book.ID,
		Place:      place,
		Status:     models.TxnPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
