package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/bookswap-backend/internal/apperr"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// DefaultPageSize is used by list endpoints that take a limit query parameter.
var DefaultPageSize = PageSizeConfig{Default: 20, Max: 100}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Request asks for one page of a keyset-ordered sequence. An empty Cursor starts at the beginning.
type Request struct {
	Limit  int
	Cursor string
}

// Page is one slice of a sequence plus the cursor that resumes after it.
// NextCursor is empty when the sequence is exhausted.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// TimeKey is a (created_at, id) keyset position for newest-first listings.
type TimeKey struct {
	At time.Time
	ID string
}

// EncodeTimeKey renders k as an opaque cursor.
func EncodeTimeKey(k TimeKey) string {
	raw := strconv.FormatInt(k.At.UnixMicro(), 10) + "|" + k.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeTimeKey parses a cursor produced by EncodeTimeKey.
func DecodeTimeKey(cursor string) (TimeKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return TimeKey{}, fmt.Errorf("%w: invalid cursor", apperr.ErrValidation)
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return TimeKey{}, fmt.Errorf("%w: invalid cursor", apperr.ErrValidation)
	}
	micros, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || !isID(id) {
		return TimeKey{}, fmt.Errorf("%w: invalid cursor", apperr.ErrValidation)
	}
	return TimeKey{At: time.UnixMicro(micros).UTC(), ID: id}, nil
}

// EncodeIDKey renders an ascending-id position as an opaque cursor.
func EncodeIDKey(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeIDKey parses a cursor produced by EncodeIDKey.
func DecodeIDKey(cursor string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil || !isID(string(raw)) {
		return "", fmt.Errorf("%w: invalid cursor", apperr.ErrValidation)
	}
	return string(raw), nil
}

// Every keyed entity uses uuid ids.
func isID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Trim turns a limit+1 sized result into a page, deriving the next cursor from the
// last kept item when an extra row proves there is more.
func Trim[T any](items []T, limit int, cursorOf func(T) string) Page[T] {
	if items == nil {
		items = []T{}
	}
	if len(items) <= limit {
		return Page[T]{Items: items}
	}
	items = items[:limit]
	return Page[T]{Items: items, NextCursor: cursorOf(items[len(items)-1])}
}
