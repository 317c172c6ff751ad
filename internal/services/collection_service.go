package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	repo "github.com/baharkarakas/bookswap-backend/internal/repository"
)

const maxCollectionTitle = 120

type CollectionService struct {
	cols  repo.Collections
	books repo.Books
}

func NewCollectionService(c repo.Collections, b repo.Books) *CollectionService {
	return &CollectionService{cols: c, books: b}
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title required", apperr.ErrValidation)
	}
	if len(title) > maxCollectionTitle {
		return "", fmt.Errorf("%w: title too long", apperr.ErrValidation)
	}
	return title, nil
}

// ownBooks checks that every id names a listed book owned by ownerID and drops duplicates.
func (s *CollectionService) ownBooks(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		b, err := s.books.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if b.DeletedAt != nil {
			return nil, fmt.Errorf("%w: book %s", apperr.ErrNotFound, id)
		}
		if b.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: book %s belongs to another user", apperr.ErrForbidden, id)
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *CollectionService) Create(ctx context.Context, ownerID, title string, bookIDs []string) (models.Collection, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return models.Collection{}, err
	}
	ids, err := s.ownBooks(ctx, ownerID, bookIDs)
	if err != nil {
		return models.Collection{}, err
	}
	return s.cols.Create(ctx, models.Collection{OwnerID: ownerID, Title: title}, ids)
}

// Get loads a collection for its owner or an admin.
func (s *CollectionService) Get(ctx context.Context, viewer models.Principal, id string) (models.Collection, error) {
	c, err := s.cols.GetByID(ctx, id)
	if err != nil {
		return models.Collection{}, err
	}
	if c.OwnerID != viewer.UserID && !viewer.IsAdmin() {
		return models.Collection{}, fmt.Errorf("%w: collection %s", apperr.ErrForbidden, id)
	}
	return c, nil
}

func (s *CollectionService) owned(ctx context.Context, ownerID, id string) (models.Collection, error) {
	c, err := s.cols.GetByID(ctx, id)
	if err != nil {
		return models.Collection{}, err
	}
	if c.OwnerID != ownerID {
		return models.Collection{}, fmt.Errorf("%w: collection %s", apperr.ErrForbidden, id)
	}
	return c, nil
}

func (s *CollectionService) List(ctx context.Context, ownerID string, page pagination.Request) (pagination.Page[models.Collection], error) {
	return s.cols.ListByOwner(ctx, ownerID, normalize(page))
}

func (s *CollectionService) Rename(ctx context.Context, ownerID, id, title string) (models.Collection, error) {
	title, err := cleanTitle(title)
	if err != nil {
		return models.Collection{}, err
	}
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return models.Collection{}, err
	}
	return s.cols.Rename(ctx, id, title)
}

func (s *CollectionService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	return s.cols.Delete(ctx, id)
}

func (s *CollectionService) AddBooks(ctx context.Context, ownerID, id string, bookIDs []string) (models.Collection, error) {
	if len(bookIDs) == 0 {
		return models.Collection{}, fmt.Errorf("%w: book_ids required", apperr.ErrValidation)
	}
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return models.Collection{}, err
	}
	ids, err := s.ownBooks(ctx, ownerID, bookIDs)
	if err != nil {
		return models.Collection{}, err
	}
	if err := s.cols.AddBooks(ctx, id, ids); err != nil {
		return models.Collection{}, err
	}
	return s.cols.GetByID(ctx, id)
}

func (s *CollectionService) RemoveBook(ctx context.Context, ownerID, id, bookID string) (models.Collection, error) {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return models.Collection{}, err
	}
	if err := s.cols.RemoveBook(ctx, id, bookID); err != nil {
		return models.Collection{}, err
	}
	return s.cols.GetByID(ctx, id)
}
