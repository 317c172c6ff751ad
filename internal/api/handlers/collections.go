package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/api/validate"
	"github.com/baharkarakas/bookswap-backend/internal/middleware"
	"github.com/baharkarakas/bookswap-backend/internal/services"
)

type CollectionHandler struct {
	Svc *services.CollectionService
}

func NewCollectionHandler(s *services.CollectionService) *CollectionHandler {
	return &CollectionHandler{Svc: s}
}

type collectionReq struct {
	Title   string   `json:"title"`
	BookIDs []string `json:"book_ids"`
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req collectionReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	c, err := h.Svc.Create(r.Context(), middleware.FromCtx(r.Context()).UserID, req.Title, req.BookIDs)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageRequest(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	res, err := h.Svc.List(r.Context(), middleware.FromCtx(r.Context()).UserID, page)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), middleware.FromCtx(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req collectionReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	c, err := h.Svc.Rename(r.Context(), middleware.FromCtx(r.Context()).UserID, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), middleware.FromCtx(r.Context()).UserID, chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionHandler) AddBooks(w http.ResponseWriter, r *http.Request) {
	var req collectionReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	if err := validate.Collect(validate.NonEmpty("book_ids", req.BookIDs)); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	c, err := h.Svc.AddBooks(r.Context(), middleware.FromCtx(r.Context()).UserID, chi.URLParam(r, "id"), req.BookIDs)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) RemoveBook(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveBook(r.Context(), middleware.FromCtx(r.Context()).UserID, chi.URLParam(r, "id"), chi.URLParam(r, "bookID"))
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}
