package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const defaultStrikesWindow = 2 * time.Hour

// parseStrikesQuery returns the lower time bound and row limit for the
// strikes listing. The default window matches the map's strike retention.
func parseStrikesQuery(r *http.Request) (since time.Time, limit int, err error) {
	q := r.URL.Query()

	since = time.Now().Add(-defaultStrikesWindow)
	if s := q.Get("since"); s != "" {
		since, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, 0, errors.New("invalid 'since' (expected RFC3339)")
		}
	}

	limit = 1000
	if s := q.Get("limit"); s != "" {
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return time.Time{}, 0, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return time.Time{}, 0, errors.New("'limit' must be > 0")
		}
		if n > 10000 {
			return time.Time{}, 0, errors.New("'limit' must be <= 10000")
		}
		limit = n
	}

	return since, limit, nil
}
