package auth

import "lexgate/internal/domain/models"

// JWTVerifier validates bearer tokens and extracts access claims. The
// abstraction keeps the middleware agnostic to where keys come from.
type JWTVerifier interface {
	// VerifyToken validates a JWT string and returns the parsed claims.
	VerifyToken(tokenString string) (*models.AccessClaims, error)

	// Close releases resources held by the verifier.
	Close() error
}
