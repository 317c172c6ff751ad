package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/bookswap-backend/internal/api/validate"
	"github.com/baharkarakas/bookswap-backend/internal/apperr"
)

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		apperr.ErrInvalidProposal:   http.StatusBadRequest,
		apperr.ErrValidation:        http.StatusBadRequest,
		apperr.ErrUnauthorized:      http.StatusUnauthorized,
		apperr.ErrForbidden:         http.StatusForbidden,
		apperr.ErrNotFound:          http.StatusNotFound,
		apperr.ErrIllegalTransition: http.StatusConflict,
		apperr.ErrConflict:          http.StatusConflict,
		errors.New("disk on fire"):  http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, StatusOf(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password=hunter2"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "hunter2")

	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "internal_error", body.Code)
}

func TestFailCarriesFieldErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	err := validate.Collect(validate.Required("book_id", ""), validate.MaxLen("place", "abcdef", 3))
	Fail(rec, httptest.NewRequest(http.MethodPost, "/", nil), err)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Code    string              `json:"code"`
		Details []validate.ErrField `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "validation_failed", body.Code)
	require.Len(t, body.Details, 2)
	require.Equal(t, "book_id", body.Details[0].Field)
}

func TestDecode(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, Decode(httptest.NewRecorder(), r, &dst))
	require.Equal(t, "x", dst.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	require.ErrorIs(t, Decode(httptest.NewRecorder(), r, &dst), apperr.ErrValidation)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	require.ErrorIs(t, Decode(httptest.NewRecorder(), r, &dst), apperr.ErrValidation)
}

func TestPageRequest(t *testing.T) {
	req, err := PageRequest(httptest.NewRequest(http.MethodGet, "/?limit=5&after=abc", nil))
	require.NoError(t, err)
	require.Equal(t, 5, req.Limit)
	require.Equal(t, "abc", req.Cursor)

	_, err = PageRequest(httptest.NewRequest(http.MethodGet, "/?limit=lots", nil))
	require.ErrorIs(t, err, apperr.ErrValidation)
}
