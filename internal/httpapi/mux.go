package httpapi

import (
	"database/sql"
	"net/http"
)

// NewMux builds the root mux with the healthcheck registered. Feature
// packages attach their routes on top of the returned mux.
func NewMux(db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", NewHealthchecker(db).handleHealthz)
	return mux
}
