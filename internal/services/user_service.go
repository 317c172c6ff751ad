package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/auth"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	repo "github.com/baharkarakas/bookswap-backend/internal/repository"
)

const minPasswordLen = 8

var errBadCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)

type UserService struct {
	r  repo.Users
	tm *auth.TokenManager
}

func NewUserService(r repo.Users, tm *auth.TokenManager) *UserService {
	return &UserService{r: r, tm: tm}
}

// Register creates a plain user account.
func (s *UserService) Register(ctx context.Context, username, password string) (models.User, error) {
	u := models.User{Username: strings.TrimSpace(username), Role: models.RoleUser}
	if err := u.Validate(); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if len(password) < minPasswordLen {
		return models.User{}, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrValidation, minPasswordLen)
	}
	if len(password) > auth.MaxPasswordBytes {
		return models.User{}, fmt.Errorf("%w: password must be at most %d bytes", apperr.ErrValidation, auth.MaxPasswordBytes)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = hash
	return s.r.Create(ctx, u)
}

// Login verifies credentials and issues a token pair. Unknown users and wrong
// passwords fail the same way.
func (s *UserService) Login(ctx context.Context, username, password string) (models.User, auth.Pair, error) {
	u, err := s.r.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrNotFound) {
		return models.User{}, auth.Pair{}, errBadCredentials
	}
	if err != nil {
		return models.User{}, auth.Pair{}, err
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); errors.Is(err, auth.ErrPasswordMismatch) {
		return models.User{}, auth.Pair{}, errBadCredentials
	} else if err != nil {
		return models.User{}, auth.Pair{}, fmt.Errorf("verify password for %s: %w", u.ID, err)
	}
	pair, err := s.tm.GeneratePair(u.ID, u.Role)
	if err != nil {
		return models.User{}, auth.Pair{}, err
	}
	return u, pair, nil
}

// Refresh exchanges a refresh token for a new pair, picking up role changes.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (auth.Pair, error) {
	claims, err := s.tm.ParseRefresh(refreshToken)
	if err != nil {
		return auth.Pair{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}
	u, err := s.r.GetByID(ctx, claims.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return auth.Pair{}, fmt.Errorf("%w: account no longer exists", apperr.ErrUnauthorized)
	}
	if err != nil {
		return auth.Pair{}, err
	}
	return s.tm.GeneratePair(u.ID, u.Role)
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	return s.r.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, page pagination.Request) (pagination.Page[models.User], error) {
	return s.r.List(ctx, normalize(page))
}

func (s *UserService) SetRole(ctx context.Context, id, role string) (models.User, error) {
	if !models.ValidRole(role) {
		return models.User{}, fmt.Errorf("%w: role must be user or admin", apperr.ErrValidation)
	}
	return s.r.UpdateRole(ctx, id, role)
}

// Promote grants the admin role by username.
func (s *UserService) Promote(ctx context.Context, username string) (models.User, error) {
	u, err := s.r.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return models.User{}, err
	}
	return s.r.UpdateRole(ctx, u.ID, models.RoleAdmin)
}
