package auth

import (
	"context"
	"net/http"
)

type ctxKey string

const (
	restaurantIDKey ctxKey = "restaurant_id"
	userIDKey       ctxKey = "user_id"
)

// RestaurantContext populates the request context from the gateway headers.
// Authentication itself happens upstream; this service only consumes the
// resolved identity.
func RestaurantContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if v := r.Header.Get("X-Restaurant-ID"); v != "" {
			ctx = context.WithValue(ctx, restaurantIDKey, v)
		}
		if v := r.Header.Get("X-User-ID"); v != "" {
			ctx = context.WithValue(ctx, userIDKey, v)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRestaurantID(ctx context.Context) string {
	if val, ok := ctx.Value(restaurantIDKey).(string); ok {
		return val
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}
