package auth

import "context"

type contextKey string

const (
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
	contextKeyScope   contextKey = "auth.scope"
)

// WithIdentity stores the caller's role, subject and station scope in context.
func WithIdentity(ctx context.Context, role Role, subject string, scope StationScope) context.Context {
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	ctx = context.WithValue(ctx, contextKeyScope, scope)
	return ctx
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeySubject)
	if subject, ok := value.(string); ok {
		return subject
	}
	return ""
}

// ScopeFromContext returns the caller's station scope. Requests that never passed
// through the middleware carry the fleet scope.
func ScopeFromContext(ctx context.Context) StationScope {
	if ctx == nil {
		return nil
	}
	scope, _ := ctx.Value(contextKeyScope).(StationScope)
	return scope
}

// StationAllowed reports whether the caller may bill or read stationCode.
func StationAllowed(ctx context.Context, stationCode string) bool {
	return ScopeFromContext(ctx).Allows(stationCode)
}
