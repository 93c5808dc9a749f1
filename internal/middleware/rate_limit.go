package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP bounds each client IP to limit requests per window.
func RateLimitByIP(limit int, window time.Duration) func(next http.Handler) http.Handler {
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// LoginRateLimit is the tighter limit applied to credential endpoints to
// slow down guessing.
func LoginRateLimit() func(next http.Handler) http.Handler {
	return RateLimitByIP(10, time.Minute)
}
