package middlewares

import (
	"fmt"
	"net/http"

	"github.com/ediflysi/jetdesk/internal/observability/logger"
	"github.com/ediflysi/jetdesk/internal/rate"
)

// IPPathRateKey genera la key por IP + path, para separar los límites de
// login de los de change-password sin leer el body.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// WithRateLimit aplica el limiter a cada request. El limiter caído no
// bloquea el tráfico: se loguea y se deja pasar.
func WithRateLimit(l rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), IPPathRateKey(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())+1))
				writeAuthError(w, http.StatusTooManyRequests,
					"Too many authentication attempts from this IP, please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
