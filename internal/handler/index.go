package handler

import (
	"net/http"

	"RequestCriteria/internal/resolver"
)

// Index answers POST /api/index with {items, total}.
func Index(svc *resolver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decode(w, r, "/api/index")
		if !ok {
			return
		}
		result, err := svc.Index(r.Context(), req)
		if err != nil {
			fail(w, "/api/index", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
