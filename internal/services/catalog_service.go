package services

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	repo "github.com/baharkarakas/bookswap-backend/internal/repository"
	"github.com/baharkarakas/bookswap-backend/internal/worker"
)

const entityBook = "book"

// CatalogService manages listed books. Exchanges read books but never change them.
type CatalogService struct {
	books repo.Books
	audit auditor
}

func NewCatalogService(b repo.Books, l repo.AuditLogs, wp *worker.Pool, log *slog.Logger) *CatalogService {
	return &CatalogService{books: b, audit: auditor{logs: l, wp: wp, log: log}}
}

func (s *CatalogService) Create(ctx context.Context, ownerID string, b models.Book) (models.Book, error) {
	b.ID = ""
	b.OwnerID = ownerID
	b.DeletedAt = nil
	if err := b.Validate(); err != nil {
		return models.Book{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	out, err := s.books.Create(ctx, b)
	if err != nil {
		return models.Book{}, err
	}
	s.audit.record(entityBook, out.ID, ownerID, "listed", map[string]any{"title": out.Title})
	return out, nil
}

// Get returns a listed book. Removed books are reported as missing.
func (s *CatalogService) Get(ctx context.Context, id string) (models.Book, error) {
	b, err := s.books.GetByID(ctx, id)
	if err != nil {
		return models.Book{}, err
	}
	if b.DeletedAt != nil {
		return models.Book{}, fmt.Errorf("%w: book %s", apperr.ErrNotFound, id)
	}
	return b, nil
}

func (s *CatalogService) List(ctx context.Context, f models.BookFilter, page pagination.Request) (pagination.Page[models.Book], error) {
	return s.books.List(ctx, f, normalize(page))
}

// Update edits the descriptive fields of a book. Only the owner may do it.
func (s *CatalogService) Update(ctx context.Context, actorID string, b models.Book) (models.Book, error) {
	cur, err := s.Get(ctx, b.ID)
	if err != nil {
		return models.Book{}, err
	}
	if cur.OwnerID != actorID {
		return models.Book{}, fmt.Errorf("%w: only the owner may edit book %s", apperr.ErrForbidden, b.ID)
	}
	b.OwnerID = cur.OwnerID
	if err := b.Validate(); err != nil {
		return models.Book{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return s.books.Update(ctx, b)
}

// Delete unlists a book. The owner or an admin may do it, but not while an open
// exchange references the book.
func (s *CatalogService) Delete(ctx context.Context, actor models.Principal, id string) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if cur.OwnerID != actor.UserID && !actor.IsAdmin() {
		return fmt.Errorf("%w: only the owner may remove book %s", apperr.ErrForbidden, id)
	}
	if err := s.books.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.audit.record(entityBook, id, actor.UserID, "removed", nil)
	return nil
}

// IsAvailable reports whether the book is listed and no open exchange holds it.
func (s *CatalogService) IsAvailable(ctx context.Context, id string) (bool, error) {
	return s.books.IsAvailable(ctx, id)
}

// ListAvailable lists the books viewerID could propose an exchange for right now.
func (s *CatalogService) ListAvailable(ctx context.Context, viewerID string, page pagination.Request) (pagination.Page[models.Book], error) {
	return s.books.ListAvailable(ctx, viewerID, normalize(page))
}

// AvailableBooks walks every available book for viewerID, one page at a time.
// Books locked after the walk started are skipped when later pages are fetched.
func (s *CatalogService) AvailableBooks(ctx context.Context, viewerID string, pageSize int) iter.Seq2[models.Book, error] {
	pageSize = pagination.ClampPageSize(pageSize, pagination.DefaultPageSize)
	return pagination.All(ctx, pageSize, "", func(ctx context.Context, req pagination.Request) (pagination.Page[models.Book], error) {
		return s.books.ListAvailable(ctx, viewerID, req)
	})
}
