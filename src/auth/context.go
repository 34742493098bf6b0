package auth

import (
	"context"
	"net/http"
	"strconv"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// GetUserIDFromContext returns the authenticated user's ID, if any.
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserIDKey).(uint)
	return userID, ok
}

// Middleware resolves the caller's identity from the X-User-ID header set
// by the upstream API gateway. The gateway terminates the session; this
// service only trusts its verdict.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("X-User-ID")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := strconv.ParseUint(header, 10, 64)
		if err != nil {
			http.Error(w, "invalid X-User-ID", http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, uint(userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
