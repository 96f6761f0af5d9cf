package testutil

import (
	"net/http"

	"certvault/pkg/requestcontext"
)

// WithIssuer marks the request as coming from an authenticated issuer.
// This simulates what the issuer auth middleware does.
func WithIssuer(req *http.Request, subject string) *http.Request {
	return req.WithContext(requestcontext.WithIssuer(req.Context(), subject))
}
