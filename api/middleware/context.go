package middleware

import (
	"context"

	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/google/uuid"
)

type contextKey string

const ctxPrincipal contextKey = "principal"

// Principal is the authenticated caller resolved from the access token.
type Principal struct {
	UserID     uuid.UUID
	TenantID   uuid.UUID
	LocationID *uuid.UUID
	Role       enums.MemberRole
	CanRefund  bool
}

// MayRefund reports whether the caller holds the refund grant or owns the tenant.
func (p Principal) MayRefund() bool {
	return p.CanRefund || p.Role == enums.MemberRoleOwner
}

// WithPrincipal injects the caller into the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(ctxPrincipal).(Principal)
	return p, ok
}

func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID.String()
	}
	return ""
}

func TenantIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.TenantID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return string(p.Role)
	}
	return ""
}
