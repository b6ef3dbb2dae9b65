package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
)

// pathParam extracts a URL path parameter regardless of which router
// served the request. The v2 API runs on chi, the legacy v1 API on
// gorilla/mux.
func pathParam(r *http.Request, name string) string {
	if v := chi.URLParam(r, name); v != "" {
		return v
	}
	return mux.Vars(r)[name]
}
