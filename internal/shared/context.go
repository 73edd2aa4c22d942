package shared

import (
	"context"
	"net/http"
	"strconv"
)

// StaffHeader carries the authenticated staff id forwarded by the auth proxy.
const StaffHeader = "X-Staff-ID"

type actorContextKey struct{}

// ContextWithActor stores the acting staff id in context.
func ContextWithActor(ctx context.Context, staffID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, staffID)
}

// ActorFromContext extracts the acting staff id; zero means self-service or system.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}

// ActorMiddleware copies StaffHeader into the request context.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := r.Header.Get(StaffHeader); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				r = r.WithContext(ContextWithActor(r.Context(), id))
			}
		}
		next.ServeHTTP(w, r)
	})
}
