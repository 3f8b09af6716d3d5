package auth

import (
	"context"
	"net/http"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	identityKey contextKey = "identity"
)

// WithIdentity stores id in ctx the way AuthMiddleware does.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	return context.WithValue(ctx, UserIDKey, id.UserID)
}

// IdentityFrom returns the caller stored by AuthMiddleware. A bare user id
// under UserIDKey counts as a non-admin caller.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	if id, ok := ctx.Value(identityKey).(Identity); ok && id.UserID != 0 {
		return id, true
	}
	if userID, ok := ctx.Value(UserIDKey).(uint); ok && userID != 0 {
		return Identity{UserID: userID}, true
	}
	return Identity{}, false
}

// AuthMiddleware authenticates plain chi routes. Sessions past half their
// lifetime get a fresh cookie.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. API key header
		if key := r.Header.Get("X-API-KEY"); key != "" {
			id, err := h.authorizeAPIKey(r.Context(), key)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
			return
		}

		// 2. Bearer token, then the session cookie
		token := bearer(r.Header.Get("Authorization"))
		fromCookie := false
		if token == "" {
			cookie, err := r.Cookie(CookieName)
			if err != nil {
				http.Error(w, "Unauthorized: No token found", http.StatusUnauthorized)
				return
			}
			token = cookie.Value
			fromCookie = true
		}

		userID, exp, err := h.ParseToken(token)
		if err != nil {
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}

		if fromCookie && exp.Sub(h.now()) < TokenDuration/2 {
			if fresh, err := h.GenerateToken(userID); err == nil {
				http.SetCookie(w, h.cookie(fresh))
			}
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{UserID: userID})))
	})
}
