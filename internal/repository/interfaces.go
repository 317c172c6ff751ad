package repository

import (
	"context"

	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
)

// Implementations return errors wrapping apperr.ErrNotFound for missing rows and
// apperr.ErrConflict for unique violations, unless a method says otherwise.

type Users interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	List(ctx context.Context, page pagination.Request) (pagination.Page[models.User], error)
	UpdateRole(ctx context.Context, id, role string) (models.User, error)
}

type Books interface {
	Create(ctx context.Context, b models.Book) (models.Book, error)
	// GetByID also returns soft-deleted books; callers check DeletedAt.
	GetByID(ctx context.Context, id string) (models.Book, error)
	List(ctx context.Context, f models.BookFilter, page pagination.Request) (pagination.Page[models.Book], error)
	Update(ctx context.Context, b models.Book) (models.Book, error)
	// SoftDelete fails with apperr.ErrConflict while a non-terminal transaction references the book.
	SoftDelete(ctx context.Context, id string) error

	// IsAvailable reports whether no non-terminal transaction references the book.
	IsAvailable(ctx context.Context, id string) (bool, error)
	// ListAvailable lists listed books not owned by excludeUserID and not locked, by id ascending.
	ListAvailable(ctx context.Context, excludeUserID string, page pagination.Request) (pagination.Page[models.Book], error)
}

type Transactions interface {
	// Create inserts a pending transaction. A second non-terminal transaction for the same
	// book fails with apperr.ErrInvalidProposal.
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	// ListForUser lists transactions where userID is either participant, newest first.
	// An empty statuses slice matches every status.
	ListForUser(ctx context.Context, userID string, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error)
	ListAll(ctx context.Context, statuses []models.TransactionStatus, page pagination.Request) (pagination.Page[models.Transaction], error)
	// UpdateStatus moves id from one status to another only if it is still in from.
	// It reports false, with no error, when the row exists but was not in from.
	UpdateStatus(ctx context.Context, id string, from, to models.TransactionStatus) (bool, error)
}

type Collections interface {
	Create(ctx context.Context, c models.Collection, bookIDs []string) (models.Collection, error)
	// GetByID loads the collection with its listed books.
	GetByID(ctx context.Context, id string) (models.Collection, error)
	ListByOwner(ctx context.Context, ownerID string, page pagination.Request) (pagination.Page[models.Collection], error)
	Rename(ctx context.Context, id, title string) (models.Collection, error)
	Delete(ctx context.Context, id string) error
	AddBooks(ctx context.Context, id string, bookIDs []string) error
	RemoveBook(ctx context.Context, id, bookID string) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
	ListForEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
}

// Set bundles one storage driver's repositories.
type Set struct {
	Users        Users
	Books        Books
	Transactions Transactions
	Collections  Collections
	AuditLogs    AuditLogs
}
