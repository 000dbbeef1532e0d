package httpapi

import (
	"net/http"
	"slices"
	"strings"
)

// readOnly lets browsers on allowed origins read the status api. The api has
// no writes and no auth, so anything but GET and preflights is refused.
func readOnly(allowOrigins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Add("Vary", "Origin")
			if allowed := allowedOrigin(allowOrigins, origin); allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				w.Header().Set("Access-Control-Allow-Methods", "GET")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
		}

		switch r.Method {
		case http.MethodGet:
			next.ServeHTTP(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Allow", "GET, OPTIONS")
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "status api is read only"})
		}
	})
}

func allowedOrigin(allowOrigins []string, origin string) string {
	if slices.Contains(allowOrigins, "*") {
		return "*"
	}
	for _, o := range allowOrigins {
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}
