package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/middleware"
	"github.com/baharkarakas/bookswap-backend/internal/services"
)

// AdminHandler serves /admin routes. The router guards them with RequireRole(admin).
type AdminHandler struct {
	Users     *services.UserService
	Exchanges *services.ExchangeService
	Catalog   *services.CatalogService
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageRequest(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	res, err := h.Users.List(r.Context(), page)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type roleReq struct {
	Role string `json:"role"`
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req roleReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	u, err := h.Users.SetRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageRequest(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	res, err := h.Exchanges.ListAll(r.Context(), r.URL.Query().Get("status"), page)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), middleware.FromCtx(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
