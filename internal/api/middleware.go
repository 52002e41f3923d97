package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v5"
)

// withAuth wraps a handler with bearer token or JWT authentication. The
// token may also be passed as the access_token query parameter, for
// websocket clients that cannot set headers.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// If no credentials are configured, skip auth
		if s.cfg.AuthDisabled() {
			next(w, r)
			return
		}

		token := r.URL.Query().Get("access_token")
		if token == "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				s.logger.Warn("missing authorization header", "remote_addr", r.RemoteAddr)
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			// Expect "Bearer <token>" format
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				s.logger.Warn("invalid authorization format", "remote_addr", r.RemoteAddr)
				http.Error(w, `{"error":"invalid authorization format"}`, http.StatusUnauthorized)
				return
			}
			token = parts[1]
		}

		if !s.validToken(token) {
			s.logger.Warn("invalid bearer token", "remote_addr", r.RemoteAddr)
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func (s *Server) validToken(token string) bool {
	if s.cfg.BearerToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.BearerToken)) == 1 {
		return true
	}

	if s.cfg.JWTSecret == "" {
		return false
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		s.logger.Debug("jwt rejected", "error", err)
		return false
	}
	return parsed.Valid
}

// IssueToken signs an HS256 token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// withSentryRecovery reports handler panics to sentry and answers 500.
func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.RecoverWithContext(r.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
