package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenExpiry is the owner session token lifetime.
const TokenExpiry = 12 * time.Hour

// RoleOwnerSession marks a token issued to the shop owner.
const RoleOwnerSession = "owner"

// Claims represents the session token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier gates owner-level operations behind a single shared secret.
// Credential storage and rotation live outside this package: it only holds
// the bcrypt hash it was handed at startup.
type Verifier struct {
	secretHash  []byte
	tokenSecret string
}

// NewVerifier builds a Verifier from a bcrypt hash of the owner secret. If
// hash is empty, plaintext is hashed instead (development fallback).
func NewVerifier(hash, plaintext, tokenSecret string) (*Verifier, error) {
	if hash == "" {
		generated, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing owner secret: %w", err)
		}
		return &Verifier{secretHash: generated, tokenSecret: tokenSecret}, nil
	}
	return &Verifier{secretHash: []byte(hash), tokenSecret: tokenSecret}, nil
}

// CheckSecret reports whether the presented secret matches the owner secret.
func (v *Verifier) CheckSecret(secret string) bool {
	return bcrypt.CompareHashAndPassword(v.secretHash, []byte(secret)) == nil
}

// GenerateToken issues an owner session token with a unique JTI.
func (v *Verifier) GenerateToken() (string, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", fmt.Errorf("generating JTI: %w", err)
	}

	claims := Claims{
		Role: RoleOwnerSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(v.tokenSecret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a session token, returning its claims.
func (v *Verifier) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.tokenSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// generateJTI creates a random token ID.
func generateJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
