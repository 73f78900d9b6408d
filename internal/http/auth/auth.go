package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pmckenzie/trustline/internal/invoice"
)

type contextKey struct{}

// claims is the token payload issued by the identity service: the account id
// in sub and the marketplace role.
type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Middleware verifies the HS256 bearer token and injects the resolved actor
// into the request context. Authentication itself happens upstream; this only
// trusts what the token asserts.
func Middleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			var c claims

			_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			actorID, err := uuid.Parse(c.Subject)
			if err != nil {
				http.Error(w, "invalid token subject", http.StatusUnauthorized)
				return
			}

			actor := invoice.Actor{ID: actorID, Role: invoice.Role(c.Role)}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, actor invoice.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, actor)
}

// ActorFrom returns the authenticated actor placed in the context by
// Middleware.
func ActorFrom(ctx context.Context) (invoice.Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(invoice.Actor)
	return actor, ok
}
