// Package auth guards the operator endpoints of the settlement API. A bearer
// token is checked against a shared secret or by an external HTTP service.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

var (
	// ErrInvalidToken indicates the token is definitively invalid.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable indicates the auth service is unreachable or unavailable.
	ErrUnavailable = errors.New("auth: unavailable")
)

// DefaultTimeout bounds a call to an external auth service
const DefaultTimeout = 500 * time.Millisecond

// Identity is the caller a token belongs to
type Identity struct {
	Subject string `json:"subject"`
	Name    string `json:"name,omitempty"`
}

// Validator validates bearer tokens.
type Validator interface {
	// Validate returns the caller's identity, ErrInvalidToken for a token that
	// is definitively rejected, or ErrUnavailable when no answer could be had.
	// A nil identity with a nil error means auth is disabled.
	Validate(ctx context.Context, token string) (*Identity, error)
}

// StaticValidator accepts a single shared secret
type StaticValidator struct {
	secret  []byte
	subject string
}

// NewStaticValidator accepts token and reports it as subject
func NewStaticValidator(token, subject string) *StaticValidator {
	return &StaticValidator{secret: []byte(token), subject: subject}
}

func (v *StaticValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), v.secret) != 1 {
		return nil, ErrInvalidToken
	}
	return &Identity{Subject: v.subject}, nil
}

// SettleScope is the scope a remotely validated token needs to settle rooms
const SettleScope = "settle"

// HTTPValidator asks an external service who a token belongs to. The token is
// forwarded as a bearer header; a 200 answer carries the caller's identity and
// scopes, and only callers holding SettleScope are let through.
type HTTPValidator struct {
	url    string
	secret string
	client *http.Client
}

// NewHTTPValidator checks tokens against url, sending secret as
// X-Admin-Secret when set
func NewHTTPValidator(url, secret string) *HTTPValidator {
	return &HTTPValidator{url: url, secret: secret, client: &http.Client{Timeout: DefaultTimeout}}
}

type introspection struct {
	Subject string   `json:"subject"`
	Name    string   `json:"name,omitempty"`
	Scopes  []string `json:"scopes"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.secret != "" {
		req.Header.Set("X-Admin-Secret", v.secret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var in introspection
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if in.Subject == "" || !slices.Contains(in.Scopes, SettleScope) {
		return nil, ErrInvalidToken
	}
	return &Identity{Subject: in.Subject, Name: in.Name}, nil
}

// NoopValidator allows every request (dev mode).
type NoopValidator struct{}

func (NoopValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	return nil, nil
}
