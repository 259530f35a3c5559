package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bidloop/bidloop-backend/pkg/logger"
)

const userIDHeader = "X-User-Id"

// Actor lifts the caller's identity from the X-User-Id header into the
// request context. Identity verification lives upstream at the gateway;
// handlers that need an actor reject requests without one.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(userIDHeader)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithField(ctx, "user_id", userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
