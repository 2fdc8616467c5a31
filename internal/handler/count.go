package handler

import (
	"net/http"

	"RequestCriteria/internal/resolver"
)

// Count answers POST /api/count with {count}.
func Count(svc *resolver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decode(w, r, "/api/count")
		if !ok {
			return
		}
		n, err := svc.Count(r.Context(), req)
		if err != nil {
			fail(w, "/api/count", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"count": n})
	}
}
