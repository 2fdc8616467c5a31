package handler

import (
	"net/http"

	"RequestCriteria/internal/resolver"
)

// Compile answers POST /api/compile with the SQL a request would run.
func Compile(svc *resolver.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decode(w, r, "/api/compile")
		if !ok {
			return
		}
		result, err := svc.Compile(req)
		if err != nil {
			fail(w, "/api/compile", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
