package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
)

type identityKey struct{}

// FromContext returns the identity attached by Require, if any
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// BearerToken extracts the token of an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Require rejects requests whose bearer token v does not accept. An
// unavailable auth service fails closed.
func Require(v Validator, logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := v.Validate(r.Context(), BearerToken(r))
		switch {
		case errors.Is(err, ErrInvalidToken):
			logger.Warn("Rejected request", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		case err != nil:
			logger.Error("Auth service unavailable", "path", r.URL.Path, "error", err)
			http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
			return
		}

		if id != nil {
			logger.Debug("Authenticated request", "path", r.URL.Path, "subject", id.Subject)
			r = r.WithContext(context.WithValue(r.Context(), identityKey{}, id))
		}
		next.ServeHTTP(w, r)
	})
}
