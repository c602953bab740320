package auth

import (
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	TenantID   uuid.UUID
	LocationID *uuid.UUID
	Role       enums.MemberRole
	CanRefund  bool
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to staff and terminals.
type AccessTokenClaims struct {
	UserID     uuid.UUID        `json:"user_id"`
	TenantID   uuid.UUID        `json:"tenant_id"`
	LocationID *uuid.UUID       `json:"location_id,omitempty"`
	Role       enums.MemberRole `json:"role"`
	CanRefund  bool             `json:"can_refund,omitempty"`
	jwt.RegisteredClaims
}
