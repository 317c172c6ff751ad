package models

import "time"

type TransactionStatus string

const (
	TxnPending    TransactionStatus = "pending"
	TxnAccepted   TransactionStatus = "accepted"
	TxnInProgress TransactionStatus = "in_progress"
	TxnCompleted  TransactionStatus = "completed"
	TxnRejected   TransactionStatus = "rejected"
	TxnCanceled   TransactionStatus = "canceled"
)

// NonTerminalStatuses lock the referenced book.
var NonTerminalStatuses = []TransactionStatus{TxnPending, TxnAccepted, TxnInProgress}

// TerminalStatuses are final.
var TerminalStatuses = []TransactionStatus{TxnCompleted, TxnRejected, TxnCanceled}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TxnPending, TxnAccepted, TxnInProgress, TxnCompleted, TxnRejected, TxnCanceled:
		return true
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return s == TxnCompleted || s == TxnRejected || s == TxnCanceled
}

// Transaction is one exchange of a book from its owner (ToUserID) to the initiator (FromUserID).
type Transaction struct {
	ID         string            `json:"id"`
	FromUserID string            `json:"from_user_id"`
	ToUserID   string            `json:"to_user_id"`
	BookID     string            `json:"book_id"`
	Place      string            `json:"place"`
	Status     TransactionStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// IsParticipant reports whether userID is either side of the exchange.
func (t Transaction) IsParticipant(userID string) bool {
	return userID != "" && (userID == t.FromUserID || userID == t.ToUserID)
}

// Bucket groups a viewer's exchanges for listing.
type Bucket string

const (
	BucketAvailable Bucket = "available"
	BucketCurrent   Bucket = "current"
	BucketArchived  Bucket = "archived"
)

// Statuses returns the status set a transaction bucket covers.
func (b Bucket) Statuses() ([]TransactionStatus, bool) {
	switch b {
	case BucketCurrent:
		return NonTerminalStatuses, true
	case BucketArchived:
		return TerminalStatuses, true
	}
	return nil, false
}
