package auth

import "net/http"

// RequireInternalToken guards routes meant for the scheduler and other
// in-cluster callers, never the public gateway. Requests must carry the
// shared token; with no token configured the routes stay disabled.
func RequireInternalToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Header.Get("X-Internal-Token") != token {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
