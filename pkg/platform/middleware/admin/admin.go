package admin

import (
	"log/slog"
	"net/http"

	"presale/pkg/requestcontext"
)

// CredentialChecker decides whether a username/password pair may use the
// administrative routes. How credentials are stored is the checker's business.
type CredentialChecker interface {
	Check(username, password string) bool
}

// RequireBasicAuth gates a route behind HTTP basic auth and records the
// operator name in the request context.
func RequireBasicAuth(checker CredentialChecker, realm string, logger *slog.Logger) func(http.Handler) http.Handler {
	challenge := `Basic realm="` + realm + `"`
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			username, password, ok := r.BasicAuth()
			if !ok || !checker.Check(username, password) {
				logger.WarnContext(ctx, "admin credentials rejected",
					"request_id", requestcontext.RequestID(ctx),
					"username", username,
					"client_ip", requestcontext.ClientIP(ctx),
				)
				w.Header().Set("WWW-Authenticate", challenge)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"valid credentials required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdminUser(ctx, username)))
		})
	}
}
