package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/kashvi-shop/pkg/auth"
	"github.com/shashiranjanraj/kashvi-shop/pkg/logger"
	"github.com/shashiranjanraj/kashvi-shop/pkg/response"
)

type principalKey struct{}

// Principal is the authenticated caller extracted from the bearer token.
type Principal struct {
	UserID uint
	Role   string
}

// WithPrincipal stores p in ctx. Exposed for tests and internal callers.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller set by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != 0
}

func UserIDFromCtx(r *http.Request) (uint, bool) {
	p, ok := PrincipalFromContext(r.Context())
	return p.UserID, ok
}

func RoleFromCtx(r *http.Request) (string, bool) {
	p, ok := PrincipalFromContext(r.Context())
	return p.Role, ok
}

// AuthMiddleware rejects requests without a valid "Authorization: Bearer"
// token and injects the token's principal into the request context. The
// request logger is re-tagged with user_id.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(token))
		if err != nil || claims.UserID == 0 {
			response.Error(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{UserID: claims.UserID, Role: claims.Role})
		ctx = logger.InjectLogger(ctx, logger.WithCtx(ctx).With("user_id", claims.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
