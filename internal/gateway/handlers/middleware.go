package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/costpilot/gateway/internal/gateway/apierr"
	"github.com/costpilot/gateway/internal/gateway/ratelimit"
	"github.com/costpilot/gateway/internal/gateway/secrets"
	"github.com/costpilot/gateway/internal/shared/models"
)

type contextKey int

const credentialKey contextKey = iota

// CredentialStore resolves bearer tokens. Secrets are stored encrypted, so
// resolution decrypts every candidate and compares plaintext.
type CredentialStore interface {
	ListCredentials(ctx context.Context) ([]models.Credential, error)
}

type Middleware struct {
	creds   CredentialStore
	cipher  *secrets.Cipher
	limiter ratelimit.Limiter
	limit   int
}

func NewMiddleware(creds CredentialStore, cipher *secrets.Cipher, limiter ratelimit.Limiter, limit int) *Middleware {
	return &Middleware{
		creds:   creds,
		cipher:  cipher,
		limiter: limiter,
		limit:   limit,
	}
}

// Auth resolves the bearer credential and stores it in the request context.
// The scan over all credentials is O(n); acceptable at the assumed scale.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, apierr.Unauthorized("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, apierr.Unauthorized("invalid authorization header format"))
			return
		}
		bearer := parts[1]

		cred, err := m.resolve(r.Context(), bearer)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), credentialKey, cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) resolve(ctx context.Context, bearer string) (*models.Credential, error) {
	creds, err := m.creds.ListCredentials(ctx)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("credential store: %w", err))
	}

	for i := range creds {
		plaintext, err := m.cipher.Decrypt(creds[i].EncryptedSecret)
		if err != nil {
			// An undecryptable row cannot match; keep scanning.
			continue
		}
		if subtle.ConstantTimeCompare([]byte(plaintext), []byte(bearer)) != 1 {
			continue
		}
		if creds[i].Status != models.CredentialActive {
			return nil, apierr.Unauthorized("credential is inactive")
		}
		return &creds[i], nil
	}
	return nil, apierr.Unauthorized("invalid credential")
}

// RateLimit enforces the per-account sliding-window quota. Runs after Auth.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred := CredentialFrom(r.Context())
		if cred == nil {
			writeError(w, apierr.Unauthorized("missing credential"))
			return
		}

		ok, reset := m.limiter.Allow(cred.OwnerID, time.Now())
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.limit))
		if !ok {
			writeError(w, apierr.RateLimited(reset))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CredentialFrom returns the credential the Auth middleware resolved, or nil.
func CredentialFrom(ctx context.Context) *models.Credential {
	cred, _ := ctx.Value(credentialKey).(*models.Credential)
	return cred
}
