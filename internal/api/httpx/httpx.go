package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/baharkarakas/bookswap-backend/internal/api/validate"
	"github.com/baharkarakas/bookswap-backend/internal/apperr"
	"github.com/baharkarakas/bookswap-backend/internal/logger"
	"github.com/baharkarakas/bookswap-backend/internal/pagination"
)

const maxBody = 1 << 20

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidProposal), errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrIllegalTransition), errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err as an APIError. Unclassified errors are logged and hidden from the client.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		logger.From(r.Context()).Error("request failed", "err", err)
		WriteError(w, status, apperr.Code(err), "internal error", nil)
		return
	}
	var details interface{}
	var fields validate.Errs
	if errors.As(err, &fields) {
		details = fields
	}
	WriteError(w, status, apperr.Code(err), err.Error(), details)
}

// Decode reads a JSON request body into dst, rejecting unknown fields.
func Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", apperr.ErrValidation)
		}
		return fmt.Errorf("%w: malformed body: %v", apperr.ErrValidation, err)
	}
	return nil
}

// PageRequest reads limit and cursor query parameters. The cursor may also be sent as "after".
func PageRequest(r *http.Request) (pagination.Request, error) {
	q := r.URL.Query()
	var req pagination.Request
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, fmt.Errorf("%w: limit must be a non-negative integer", apperr.ErrValidation)
		}
		req.Limit = n
	}
	req.Cursor = q.Get("cursor")
	if req.Cursor == "" {
		req.Cursor = q.Get("after")
	}
	return req, nil
}
