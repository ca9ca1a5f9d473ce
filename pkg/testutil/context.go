package testutil

import (
	"net/http"

	"presale/pkg/requestcontext"
)

// WithAdmin marks the request as having passed the operator gate, the way
// admin.RequireBasicAuth does after checking credentials.
func WithAdmin(req *http.Request, user string) *http.Request {
	return req.WithContext(requestcontext.WithAdminUser(req.Context(), user))
}
