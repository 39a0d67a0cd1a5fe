package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	dErrors "idp/pkg/domain-errors"
	"idp/pkg/platform/httputil"
	"idp/pkg/requestcontext"
)

// UserIDHeader carries the authenticated user id, set by the gateway in
// front of this service after it validated the session. The value is the
// internal numeric id.
const UserIDHeader = "X-Authenticated-User-Id"

// TrustedUser copies the gateway-supplied user id into the context. A
// missing header leaves the request anonymous; a malformed one is rejected.
func TrustedUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				ctx := r.Context()
				logger.WarnContext(ctx, "malformed authenticated user header",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid authenticated user"))
				return
			}
			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without an authenticated user.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := requestcontext.UserID(ctx); !ok {
				logger.WarnContext(ctx, "unauthorized access - no authenticated user",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
