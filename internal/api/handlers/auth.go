package handlers

import (
	"net/http"
	"time"

	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/api/validate"
	"github.com/baharkarakas/bookswap-backend/internal/auth"
	"github.com/baharkarakas/bookswap-backend/internal/middleware"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/services"
)

type AuthHandler struct {
	Users *services.UserService
}

func NewAuthHandler(us *services.UserService) *AuthHandler {
	return &AuthHandler{Users: us}
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (req credentialsReq) check() error {
	return validate.Collect(
		validate.Required("username", req.Username),
		validate.MaxLen("username", req.Username, 64),
		validate.Required("password", req.Password),
	)
}

type tokenResp struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"` // seconds until the access token expires
	User         *models.User `json:"user,omitempty"`
}

func newTokenResp(p auth.Pair, u *models.User) tokenResp {
	return tokenResp{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    int64(time.Until(p.ExpiresAt).Truncate(time.Second).Seconds()),
		User:         u,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	u, err := h.Users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	if err := req.check(); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	u, pair, err := h.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newTokenResp(pair, &u))
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	if err := validate.Collect(validate.Required("refresh_token", req.RefreshToken)); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	pair, err := h.Users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newTokenResp(pair, nil))
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(r.Context(), middleware.FromCtx(r.Context()).UserID)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}
