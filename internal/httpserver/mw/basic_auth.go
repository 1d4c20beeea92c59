package mw

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/stash/internal/auth"
	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/utils"
)

type ctxKey int

const userKey ctxKey = iota

// BasicAuth rejects requests without valid credentials and stores the
// authenticated username in the request context.
func BasicAuth(users *auth.Users, realm string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, password, ok := r.BasicAuth()
			if !ok || !users.Authenticate(name, password) {
				if ok {
					log.Warn("basic auth rejected",
						logger.String("user", name),
						logger.String("remote_ip", utils.ClientIP(r, trustProxy)))
				}
				w.Header().Set("WWW-Authenticate", challenge)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), name)))
		})
	}
}

// WithUser returns a context carrying the authenticated username.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the authenticated username, or "" outside BasicAuth.
func UserFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}
