// Package exchange is the authoritative transition table for book exchanges.
// Services and handlers ask it what may happen; they never compare statuses themselves.
package exchange

import (
	"fmt"
	"strings"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
)

type Event string

const (
	EventAccept   Event = "accept"
	EventReject   Event = "reject"
	EventProgress Event = "progress"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

// who may fire an event
type actor int

const (
	bookOwner actor = iota
	eitherParticipant
)

type rule struct {
	from  []models.TransactionStatus
	to    models.TransactionStatus
	actor actor
}

var table = map[Event]rule{
	EventAccept:   {from: on(models.TxnPending), to: models.TxnAccepted, actor: bookOwner},
	EventReject:   {from: on(models.TxnPending), to: models.TxnRejected, actor: bookOwner},
	EventProgress: {from: on(models.TxnAccepted), to: models.TxnInProgress, actor: eitherParticipant},
	EventComplete: {from: on(models.TxnAccepted, models.TxnInProgress), to: models.TxnCompleted, actor: eitherParticipant},
	EventCancel:   {from: on(models.TxnAccepted, models.TxnInProgress), to: models.TxnCanceled, actor: eitherParticipant},
}

// order used when listing actions
var events = []Event{EventAccept, EventReject, EventProgress, EventComplete, EventCancel}

func on(s ...models.TransactionStatus) []models.TransactionStatus { return s }

func (r rule) accepts(s models.TransactionStatus) bool {
	for _, f := range r.from {
		if f == s {
			return true
		}
	}
	return false
}

func (r rule) allows(tx models.Transaction, actorID string) bool {
	if !tx.IsParticipant(actorID) {
		return false
	}
	return r.actor == eitherParticipant || actorID == tx.ToUserID
}

// ParseDecision accepts the owner's answer to a proposal.
func ParseDecision(s string) (Event, error) {
	switch ev := Event(strings.ToLower(strings.TrimSpace(s))); ev {
	case EventAccept, EventReject:
		return ev, nil
	}
	return "", fmt.Errorf("%w: decision must be accept or reject", apperr.ErrValidation)
}

// ParseAdvance accepts an event that drives an accepted exchange forward.
func ParseAdvance(s string) (Event, error) {
	switch ev := Event(strings.ToLower(strings.TrimSpace(s))); ev {
	case EventProgress, EventComplete, EventCancel:
		return ev, nil
	}
	return "", fmt.Errorf("%w: event must be progress, complete or cancel", apperr.ErrValidation)
}

// Plan validates ev against tx for actorID and returns the status to write.
// Authority is checked before the status so a stranger learns nothing about the exchange.
func Plan(tx models.Transaction, actorID string, ev Event) (models.TransactionStatus, error) {
	r, ok := table[ev]
	if !ok {
		return "", fmt.Errorf("%w: unknown event %q", apperr.ErrValidation, ev)
	}
	if !tx.IsParticipant(actorID) {
		return "", fmt.Errorf("%w: not a participant of exchange %s", apperr.ErrForbidden, tx.ID)
	}
	if !r.allows(tx, actorID) {
		return "", fmt.Errorf("%w: only the book owner may %s", apperr.ErrForbidden, ev)
	}
	if !r.accepts(tx.Status) {
		return "", fmt.Errorf("%w: cannot %s a %s exchange", apperr.ErrIllegalTransition, ev, tx.Status)
	}
	return r.to, nil
}

// Actions lists the events actorID could fire on tx right now.
func Actions(tx models.Transaction, actorID string) []Event {
	out := []Event{}
	for _, ev := range events {
		r := table[ev]
		if r.allows(tx, actorID) && r.accepts(tx.Status) {
			out = append(out, ev)
		}
	}
	return out
}
