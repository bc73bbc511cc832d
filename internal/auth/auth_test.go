package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPValidatorValidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "s3cret", r.Header.Get("X-Admin-Secret"))

		switch BearerToken(r) {
		case "settler-token":
			_ = json.NewEncoder(w).Encode(introspection{Subject: "ops-1", Name: "settler", Scopes: []string{"rooms", SettleScope}})
		case "viewer-token":
			_ = json.NewEncoder(w).Encode(introspection{Subject: "ops-2", Scopes: []string{"rooms"}})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	validator := NewHTTPValidator(server.URL, "s3cret")

	identity, err := validator.Validate(context.Background(), "settler-token")
	require.NoError(t, err)
	assert.Equal(t, &Identity{Subject: "ops-1", Name: "settler"}, identity)

	_, err = validator.Validate(context.Background(), "viewer-token")
	assert.ErrorIs(t, err, ErrInvalidToken, "a token without the settle scope")

	_, err = validator.Validate(context.Background(), "other-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorEmptyToken(t *testing.T) {
	validator := NewHTTPValidator("http://localhost:9999", "")
	_, err := validator.Validate(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrInvalidToken},
		{"forbidden", http.StatusForbidden, ErrInvalidToken},
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"unexpected", http.StatusTeapot, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			_, err := NewHTTPValidator(server.URL, "").Validate(context.Background(), "token")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPValidatorTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "").Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPValidatorMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "").Validate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStaticValidator(t *testing.T) {
	v := NewStaticValidator("operator-token", "operator")

	id, err := v.Validate(context.Background(), "operator-token")
	require.NoError(t, err)
	assert.Equal(t, "operator", id.Subject)

	for _, token := range []string{"", "operator-tok", "operator-token2"} {
		_, err := v.Validate(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestNoopValidator(t *testing.T) {
	id, err := NoopValidator{}.Validate(context.Background(), "")
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestRequire(t *testing.T) {
	logger := log.New(io.Discard)
	var seen *Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(v Validator, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/settle", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		Require(v, logger, next).ServeHTTP(rec, req)
		return rec.Code
	}

	static := NewStaticValidator("tok", "operator")
	assert.Equal(t, http.StatusUnauthorized, call(static, ""))
	assert.Equal(t, http.StatusUnauthorized, call(static, "Basic dG9rOg=="))
	assert.Equal(t, http.StatusUnauthorized, call(static, "Bearer nope"))

	assert.Equal(t, http.StatusNoContent, call(static, "bearer tok"))
	require.NotNil(t, seen)
	assert.Equal(t, "operator", seen.Subject)

	seen = nil
	assert.Equal(t, http.StatusNoContent, call(NoopValidator{}, ""))
	assert.Nil(t, seen)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	assert.Equal(t, http.StatusServiceUnavailable, call(NewHTTPValidator(down.URL, ""), "Bearer tok"))
}
