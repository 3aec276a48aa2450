package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload is everything known at mint time. JTI may be empty, in
// which case MintAccessToken generates one.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Phone  string
	JTI    string
}

// AccessTokenClaims is the JWT body issued to storefront clients. Phone is
// carried so refresh can remint without a user lookup.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Phone  string    `json:"phone,omitempty"`
	jwt.RegisteredClaims
}
