package middleware

import (
	"net/http"
	"strings"
)

const corsMaxAge = "300"

// corsPolicy is the resolved allow list. A nil policy means CORS is
// disabled and no headers are emitted.
type corsPolicy struct {
	allowAll bool
	origins  map[string]struct{}
}

func (p *corsPolicy) permits(origin string) bool {
	if p.allowAll {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORS returns middleware that sets Cross-Origin Resource Sharing headers
// for the dashboard and live-feed clients. A "*" entry allows every origin
// (development only). With an empty allow list the middleware still
// answers OPTIONS preflights with 204 but emits no allow headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := &corsPolicy{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			policy.allowAll = true
		default:
			policy.origins[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && policy.permits(origin) {
				h := w.Header()
				if policy.allowAll {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				// The call API is GET/POST only.
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Accept, Content-Type")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ParseCORSOrigins splits a comma-separated origins string into a slice,
// dropping empty entries. Empty input returns nil.
func ParseCORSOrigins(raw string) []string {
	var origins []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
