package testutil

import (
	"net/http"

	"idp/internal/platform/middleware"
	"idp/pkg/requestcontext"
)

// WithUserID puts an authenticated user on the request context, as the
// trusted-user middleware would.
func WithUserID(req *http.Request, userID int64) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithUserHeader sets the gateway header instead, for tests that go through
// the full router.
func WithUserHeader(req *http.Request, userID string) *http.Request {
	req.Header.Set(middleware.UserIDHeader, userID)
	return req
}
