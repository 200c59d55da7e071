package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims represents the JWT claims the gateway accepts from the
// identity provider. The subject claim is the opaque user_id used across the
// turn pipeline.
type AccessClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email,omitempty"`
	Name                 string `json:"name,omitempty"`
	Role                 string `json:"role"` // "authenticated" or "anon"
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *AccessClaims) GetUserID() string {
	return c.Subject
}
