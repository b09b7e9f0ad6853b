// Package params parses the query parameters shared by list endpoints.
package params

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Pagination defaults. MaxPage keeps Offset well inside int range for any
// limit up to MaxLimit.
const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxPage      = 1_000_000
)

// Page is a requested page of a list.
type Page struct {
	Number int
	Limit  int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// ParsePage reads page and limit. Missing values fall back to page 1 and
// DefaultLimit; limit is capped at MaxLimit. Pages beyond MaxPage are
// rejected.
func ParsePage(r *http.Request) (Page, error) {
	p := Page{Number: 1, Limit: DefaultLimit}
	q := r.URL.Query()

	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, fmt.Errorf("page must be a positive integer")
		}
		if n > MaxPage {
			return p, fmt.Errorf("page must be at most %d", MaxPage)
		}
		p.Number = n
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return p, fmt.Errorf("limit must be a positive integer")
		}
		p.Limit = min(n, MaxLimit)
	}
	return p, nil
}

// Window is an optional device and time range.
type Window struct {
	DeviceID string
	From     time.Time
	To       time.Time
}

// ParseWindow reads deviceId, from and to. Times are RFC 3339.
func ParseWindow(r *http.Request) (Window, error) {
	return WindowFromValues(r.URL.Query())
}

// WindowFromValues is ParseWindow over already decoded query values.
func WindowFromValues(q url.Values) (Window, error) {
	w := Window{DeviceID: q.Get("deviceId")}

	var err error
	if w.From, err = parseTime(q.Get("from")); err != nil {
		return w, fmt.Errorf("from: %w", err)
	}
	if w.To, err = parseTime(q.Get("to")); err != nil {
		return w, fmt.Errorf("to: %w", err)
	}
	if !w.From.IsZero() && !w.To.IsZero() && w.To.Before(w.From) {
		return w, fmt.Errorf("to must not be before from")
	}
	return w, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}
