package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/middleware"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/services"
)

type BookHandler struct {
	Svc *services.CatalogService
}

func NewBookHandler(s *services.CatalogService) *BookHandler {
	return &BookHandler{Svc: s}
}

type bookReq struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Year     *int   `json:"year"`
}

func (req bookReq) book() models.Book {
	return models.Book{Title: req.Title, Author: req.Author, Category: req.Category, Year: req.Year}
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	b, err := h.Svc.Create(r.Context(), middleware.FromCtx(r.Context()).UserID, req.book())
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, b)
}

// List serves the catalog. owner=me narrows it to the caller's own books.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageRequest(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f := models.BookFilter{Category: q.Get("category"), Author: q.Get("author")}
	switch owner := q.Get("owner"); owner {
	case "":
	case "me":
		f.OwnerID = middleware.FromCtx(r.Context()).UserID
	default:
		f.OwnerID = owner
	}
	res, err := h.Svc.List(r.Context(), f, page)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// Available lists books the caller could propose an exchange for.
func (h *BookHandler) Available(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageRequest(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	res, err := h.Svc.ListAvailable(r.Context(), middleware.FromCtx(r.Context()).UserID, page)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type bookView struct {
	models.Book
	Available bool `json:"available"`
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	avail, err := h.Svc.IsAvailable(r.Context(), id)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bookView{Book: b, Available: avail})
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req bookReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	b := req.book()
	b.ID = chi.URLParam(r, "id")
	out, err := h.Svc.Update(r.Context(), middleware.FromCtx(r.Context()).UserID, b)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.Context(), middleware.FromCtx(r.Context()), chi.URLParam(r, "id")); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
