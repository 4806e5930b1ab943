package pagination

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medibrief/medibrief/internal/platform/httperr"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor holds keyset pagination parameters extracted from a request.
// Cursor is the id of the last row of the previous page; nil on the first
// page.
type Cursor struct {
	After *uuid.UUID
	Limit int
}

// CursorFromContext extracts ?cursor and ?limit, enforcing bounds strictly:
// a limit of 0 or above MaxLimit is a validation error rather than a
// silent clamp.
func CursorFromContext(c echo.Context) (Cursor, error) {
	cur := Cursor{Limit: DefaultLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return cur, httperr.Validation(map[string]string{
				"limit": "must be an integer between 1 and 100",
			})
		}
		cur.Limit = n
	}

	if raw := c.QueryParam("cursor"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return cur, httperr.Validation(map[string]string{"cursor": "must be a valid id"})
		}
		cur.After = &id
	}

	return cur, nil
}

// Page wraps a cursor-paginated API response. NextCursor is the id of the
// last returned row when more rows exist, null otherwise.
type Page struct {
	Data       interface{} `json:"data"`
	NextCursor *uuid.UUID  `json:"nextCursor"`
}

func NewPage(data interface{}, nextCursor *uuid.UUID) *Page {
	return &Page{Data: data, NextCursor: nextCursor}
}

// Offset holds classic page/limit pagination for admin listings.
type Offset struct {
	Page  int
	Limit int
}

// OffsetFromContext extracts ?page and ?limit with the same strict limit
// bounds as CursorFromContext.
func OffsetFromContext(c echo.Context) (Offset, error) {
	off := Offset{Page: 1, Limit: DefaultLimit}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return off, httperr.Validation(map[string]string{
				"limit": "must be an integer between 1 and 100",
			})
		}
		off.Limit = n
	}

	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return off, httperr.Validation(map[string]string{"page": "must be a positive integer"})
		}
		off.Page = n
	}

	return off, nil
}

// SQLOffset returns the row offset for the configured page.
func (o Offset) SQLOffset() int { return (o.Page - 1) * o.Limit }
