package middleware

import (
	"net/http"

	"github.com/lodestone-ai/lodestone/internal/api"
)

// MaxBodyBytes caps request bodies at limit bytes. Requests declaring a
// larger Content-Length are rejected before the handler runs; chunked bodies
// are capped by the wrapped reader and surface as *http.MaxBytesError inside
// the handler's decode.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
