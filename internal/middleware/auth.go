package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AnshRaj112/providerhub-backend/internal/apperrors"
	"github.com/AnshRaj112/providerhub-backend/internal/models"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

type ctxKey int

const identityKey ctxKey = iota

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the identity attached by Authenticate or OptionalAuth.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

var errMissingToken = apperrors.Unauthorized("authentication required")

// Authenticate rejects requests without a valid, unrevoked token with 401.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				apperrors.Write(w, errMissingToken)
				return
			}
			id, err := v.Verify(r.Context(), token)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is presented and otherwise
// lets the request through anonymously.
func OptionalAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := BearerToken(r); token != "" {
				if id, err := v.Verify(r.Context(), token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole answers 403 unless allowed reports true for the caller's role.
// It must run after Authenticate.
func RequireRole(allowed func(models.Role) bool, message string) func(http.Handler) http.Handler {
	forbidden := apperrors.Forbidden(message)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				apperrors.Write(w, errMissingToken)
				return
			}
			if !allowed(id.Role) {
				apperrors.Write(w, forbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	if appErr, ok := apperrors.As(err); ok {
		apperrors.Write(w, appErr)
		return
	}
	// The revocation lookup failed; the token itself may be fine.
	apperrors.Write(w, apperrors.Internal())
}
