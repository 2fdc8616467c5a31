package router

import (
	"net/http"
	"slices"
	"strings"
)

// withCORS adds CORS headers and answers preflight requests. allowOrigin is
// a comma-separated list; "*" allows any origin.
func withCORS(allowOrigin string, allowCredentials bool) func(http.Handler) http.Handler {
	origins := parseOrigins(allowOrigin)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin, vary := allowedOrigin(origins, allowCredentials, r.Header.Get("Origin"))
			if origin != "" {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if vary {
				h.Set("Vary", "Origin")
			}
			if allowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowedOrigin picks the Access-Control-Allow-Origin value. A wildcard
// cannot be combined with credentials, so the caller's origin is echoed then.
func allowedOrigin(origins []string, allowCredentials bool, requestOrigin string) (value string, vary bool) {
	if len(origins) == 0 {
		return "*", false
	}
	if slices.Contains(origins, "*") {
		if allowCredentials && requestOrigin != "" {
			return requestOrigin, true
		}
		return "*", false
	}
	if requestOrigin != "" && slices.Contains(origins, requestOrigin) {
		return requestOrigin, true
	}
	return "", true
}

func parseOrigins(allowOrigin string) []string {
	var out []string
	for _, p := range strings.Split(allowOrigin, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
