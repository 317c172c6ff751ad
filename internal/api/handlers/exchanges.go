package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/bookswap-backend/internal/api/httpx"
	"github.com/baharkarakas/bookswap-backend/internal/api/validate"
	"github.com/baharkarakas/bookswap-backend/internal/exchange"
	"github.com/baharkarakas/bookswap-backend/internal/middleware"
	"github.com/baharkarakas/bookswap-backend/internal/models"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
	"github.com/baharkarakas/bookswap-backend/internal/services"
)

const headerIdempotencyKey = "Idempotency-Key"

type ExchangeHandler struct {
	Svc *services.ExchangeService
}

func NewExchangeHandler(s *services.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{Svc: s}
}

// exchangeView adds the caller's next possible events to a transaction.
type exchangeView struct {
	models.Transaction
	Actions []exchange.Event `json:"actions"`
}

func (h *ExchangeHandler) view(tx models.Transaction, viewerID string) exchangeView {
	return exchangeView{Transaction: tx, Actions: h.Svc.Actions(tx, viewerID)}
}

type proposeReq struct {
	BookID string `json:"book_id"`
	Place  string `json:"place"`
}

func (h *ExchangeHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	if err := validate.Collect(validate.Required("book_id", req.BookID)); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	me := middleware.FromCtx(r.Context()).UserID
	tx, err := h.Svc.Propose(r.Context(), me, req.BookID, req.Place, r.Header.Get(headerIdempotencyKey))
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, h.view(tx, me))
}

type respondReq struct {
	Decision string `json:"decision"`
}

func (h *ExchangeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req respondReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	me := middleware.FromCtx(r.Context()).UserID
	tx, err := h.Svc.Respond(r.Context(), chi.URLParam(r, "id"), me, req.Decision)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.view(tx, me))
}

type advanceReq struct {
	Event string `json:"event"`
}

func (h *ExchangeHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceReq
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.Fail(w, r, err)
		return
	}
	me := middleware.FromCtx(r.Context()).UserID
	tx, err := h.Svc.Advance(r.Context(), chi.URLParam(r, "id"), me, req.Event)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.view(tx, me))
}

func (h *ExchangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.FromCtx(r.Context())
	tx, err := h.Svc.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.view(tx, p.UserID))
}

func (h *ExchangeHandler) History(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Svc.History(r.Context(), middleware.FromCtx(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": logs})
}

// List serves ?bucket=current|archived, defaulting to current.
func (h *ExchangeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.PageRequest(r)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	bucket := models.Bucket(r.URL.Query().Get("bucket"))
	if bucket == "" {
		bucket = models.BucketCurrent
	}
	me := middleware.FromCtx(r.Context()).UserID
	res, err := h.Svc.List(r.Context(), me, bucket, page)
	if err != nil {
		httpx.Fail(w, r, err)
		return
	}
	out := pagination.Page[exchangeView]{Items: make([]exchangeView, 0, len(res.Items)), NextCursor: res.NextCursor}
	for _, tx := range res.Items {
		out.Items = append(out.Items, h.view(tx, me))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
