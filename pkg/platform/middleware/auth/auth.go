package auth

import (
	"log/slog"
	"net/http"
	"strings"

	jwttoken "certvault/internal/jwt_token"
	dErrors "certvault/pkg/domain-errors"
	"certvault/pkg/platform/httputil"
	"certvault/pkg/platform/middleware/request"
	"certvault/pkg/requestcontext"
)

// TokenValidator validates issuer bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwttoken.Claims, error)
}

// RequireIssuer rejects requests without a valid bearer token carrying the
// issue scope. The token subject becomes the request's issuer.
func RequireIssuer(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}
			if !claims.HasScope(jwttoken.ScopeIssue) {
				logger.WarnContext(ctx, "forbidden - token lacks issue scope",
					"subject", claims.Subject,
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Token is not allowed to issue certificates"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithIssuer(ctx, claims.Subject)))
		})
	}
}
