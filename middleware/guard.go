package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/voicegrant/token"
)

// TokenVerifier is the part of voicegrant.Engine the guard needs.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenStr string) (*token.VerifiedClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Guard.
func ClaimsFromContext(ctx context.Context) (*token.VerifiedClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.VerifiedClaims)
	return claims, ok
}

// Guard rejects requests without a valid bearer token with 401 and stores
// the verified claims on the request context otherwise.
func Guard(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(r.Context(), tok)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := strings.TrimSpace(value[len(bearer):])
	if tok == "" {
		return "", false
	}

	return tok, true
}
