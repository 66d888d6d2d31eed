// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// The auth middleware sets the actor and role after validating the bearer
// token; services read them without importing anything HTTP-related. Now(ctx)
// gives every operation a single request-scoped clock that tests can pin.
package requestcontext

import (
	"context"
	"time"

	id "corebank/pkg/domain"
)

type (
	actorIDKey     struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// ActorID retrieves the authenticated actor from the context. Returns the
// zero value if not set.
func ActorID(ctx context.Context) id.UserID {
	if actor, ok := ctx.Value(ContextKeyActorID).(id.UserID); ok {
		return actor
	}
	return id.UserID{}
}

// WithActorID injects the authenticated actor into the context.
func WithActorID(ctx context.Context, actor id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actor)
}

// Role retrieves the authenticated role from the context. Returns "" if not
// set; the authorization gate denies unknown roles.
func Role(ctx context.Context) id.Role {
	if role, ok := ctx.Value(ContextKeyRole).(id.Role); ok {
		return role
	}
	return ""
}

// WithRole injects the authenticated role into the context.
func WithRole(ctx context.Context, role id.Role) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, tests that don't pin it).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
