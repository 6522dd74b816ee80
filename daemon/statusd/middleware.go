package statusd

import (
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	ghandlers "github.com/gorilla/handlers"
)

// TokenHeader carries the API token. The api_token query parameter works too,
// for websocket clients that cannot set headers.
const TokenHeader = "X-Ride-Token"

// tokenAuthenticationMiddleware rejects requests without the configured token
// with 403 Forbidden. If no token is configured, it allows all requests.
func (s *StatusDaemon) tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		valid := s.Config.Token
		if valid == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get(TokenHeader)
		if token == "" {
			token = r.URL.Query().Get("api_token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(valid)) != 1 {
			s.logger.Warn("Invalid token", "method", r.Method, "url", r.URL.Path,
				"remote", r.RemoteAddr, "user-agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return ghandlers.CORS(
		ghandlers.AllowedOrigins([]string{"*"}),
		ghandlers.AllowedHeaders([]string{"Origin", "X-Requested-With", "Content-Type", "Accept", TokenHeader}),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
	)(next)
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs one line per request through slog.
func (s *StatusDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p ghandlers.LogFormatterParams) {
		s.logger.Debug("Request",
			"method", p.Request.Method,
			"uri", p.URL.RequestURI(),
			"status", p.StatusCode,
			"size", p.Size,
			"remote", p.Request.RemoteAddr,
			"elapsed", time.Since(p.TimeStamp).Round(time.Microsecond))
	})
}
