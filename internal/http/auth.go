package httpapi

import (
	"context"
	"net/http"

	"github.com/hperssn/chefmentor/internal/log"
)

type contextKey string

const userIDKey contextKey = "userId"

// DemoUser is attributed to requests without an identity header when
// anonymous access is allowed.
const DemoUser = "demo-user"

// identityHeaders are checked in order. The reverse proxy in front of the
// service (Traefik BasicAuth, oauth2-proxy) sets one of them.
var identityHeaders = []string{"X-Auth-User", "X-Forwarded-User", "Remote-User"}

// ExtractUser resolves the caller's identity and stores it in the request
// context. Without an identity header the request is rejected unless
// allowAnonymous is set.
func ExtractUser(allowAnonymous bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ""
			for _, h := range identityHeaders {
				if userID = r.Header.Get(h); userID != "" {
					break
				}
			}

			if userID == "" {
				if !allowAnonymous {
					log.WithContext(r.Context(), log.WithComponent("auth")).Warn().
						Str("path", r.URL.Path).
						Msg("authentication failed: no user header found")
					respondError(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				userID = DemoUser
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the identity stored by ExtractUser.
func UserID(r *http.Request) string {
	userID, ok := r.Context().Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}
