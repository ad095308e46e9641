package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"argus/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// rateLimiterIdleTTL is how long an idle client keeps its limiter before the
// cleanup loop drops it.
const rateLimiterIdleTTL = 10 * time.Minute

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware assigns each request an ID, honoring one supplied by
// an upstream proxy.
func (a *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs every request with its outcome and duration, and
// feeds the API request counter.
func (a *API) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		a.logger.Infow("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"remote", clientIP(r),
			"request_id", w.Header().Get(requestIDHeader),
		)
	})
}

// rateLimitMiddleware applies a token bucket per client IP.
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.allowClient(clientIP(r)) {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bodyLimitMiddleware caps request body size before handlers decode it.
func (a *API) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, a.config.API.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) allowClient(ip string) bool {
	a.rateLimitersMu.Lock()
	entry, ok := a.rateLimiters[ip]
	if !ok {
		entry = &rateLimiterEntry{
			limiter: rate.NewLimiter(
				rate.Limit(a.config.API.RateLimit.RequestsPerSecond),
				a.config.API.RateLimit.Burst,
			),
		}
		a.rateLimiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	a.rateLimitersMu.Unlock()
	return entry.limiter.Allow()
}

// cleanupRateLimiters drops limiters for clients idle past the TTL.
func (a *API) cleanupRateLimiters() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.rateLimitersMu.Lock()
			for ip, entry := range a.rateLimiters {
				if time.Since(entry.lastSeen) > rateLimiterIdleTTL {
					delete(a.rateLimiters, ip)
				}
			}
			a.rateLimitersMu.Unlock()
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
