package ratelimit

import (
	"net"
	"net/http"
	"strconv"

	"github.com/orna-ly/orna.ly-sub000/pkg/httpx"
	"github.com/orna-ly/orna.ly-sub000/pkg/logging"
)

const MessageTooManyRequests = "Too many requests"

// KeyFunc derives the counter key for a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys by remote address. Run chi's RealIP middleware first when
// behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429. Store failures let
// the request through.
func Middleware(l *Limiter, key KeyFunc, service string) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), r.URL.Path+":"+key(r))
			if err != nil {
				logging.Log(logging.Fields{Service: service, Step: "rate_limit", Status: "store_error", Err: err})
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(l.Window().Seconds())))
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", MessageTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
