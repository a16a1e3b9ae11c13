package utils

import (
	"errors" // Sentinel errors
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// DefaultTokenTTL is the fixed session lifetime
const DefaultTokenTTL = 24 * time.Hour

// ErrMissingSecret is returned when no signing key is configured
var ErrMissingSecret = errors.New("jwt secret is not configured")

// JWT Claims
type Claims struct {
	UserID               string `json:"id"`    // User ID
	Email                string `json:"email"` // User email
	Role                 string `json:"role"`  // User role
	jwt.RegisteredClaims        // Standard JWT claims
}

// GenerateJWT creates a signed token carrying the user's id, email and role
func GenerateJWT(id, email, role, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := Claims{
		UserID: id,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

// Signer issues tokens with a fixed secret and lifetime
type Signer struct {
	Secret string
	TTL    time.Duration
}

// Sign issues a token for the given identity
func (s Signer) Sign(id, email, role string) (string, error) {
	return GenerateJWT(id, email, role, s.Secret, s.TTL)
}
