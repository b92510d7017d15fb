// Package shared holds cross-cutting primitives: the request principal,
// pagination metadata and the audit logger.
package shared

import "context"

// Principal describes the authenticated caller attached to a request.
// Every service operation receives the tenant scope from here explicitly;
// nothing downstream trusts an ambient tenant.
type Principal struct {
	UserID    int64
	CompanyID int64
	Role      string
	Email     string
}

// HasRole reports whether the principal holds one of the given roles.
func (p Principal) HasRole(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. The second return
// value is false when the request was not authenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
