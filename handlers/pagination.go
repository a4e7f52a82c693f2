package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var (
	ErrInvalidLimit  = errors.New("limit must be a positive integer")
	ErrInvalidCursor = errors.New("before must be an RFC 3339 timestamp, optionally followed by _<id>")
)

// ArrivalCursor points just past the last arrival of the previous page.
// A zero ID excludes every arrival at Time.
type ArrivalCursor struct {
	Time time.Time
	ID   int64
}

func (c ArrivalCursor) String() string {
	return fmt.Sprintf("%s_%d", c.Time.UTC().Format(time.RFC3339Nano), c.ID)
}

type PaginationParams struct {
	Limit  int
	Before *ArrivalCursor
}

type CursorResponse struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

// ParsePagination reads limit and before from the query string. Limits above
// MaxLimit are clamped.
func ParsePagination(c *gin.Context) (PaginationParams, error) {
	p := PaginationParams{Limit: DefaultLimit}

	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return p, ErrInvalidLimit
		}
		p.Limit = min(l, MaxLimit)
	}

	if beforeStr := c.Query("before"); beforeStr != "" {
		cursor, err := parseCursor(beforeStr)
		if err != nil {
			return p, err
		}
		p.Before = &cursor
	}

	return p, nil
}

func parseCursor(s string) (ArrivalCursor, error) {
	ts, idStr, hasID := strings.Cut(s, "_")

	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ArrivalCursor{}, ErrInvalidCursor
	}

	cursor := ArrivalCursor{Time: t}
	if hasID {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			return ArrivalCursor{}, ErrInvalidCursor
		}
		cursor.ID = id
	}
	return cursor, nil
}
