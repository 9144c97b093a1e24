// Package auth validates bearer credentials issued by the authentication
// collaborator. Token issuance lives there; this side only needs
// "validate token → user id" plus the role for route guards.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for missing, malformed, or expired
// credentials. Clients must clear local session-belief state and re-login.
var ErrUnauthenticated = errors.New("invalid or expired credential")

// Role gates responder- and admin-only routes.
type Role string

const (
	RoleCivilian  Role = "civilian"
	RoleResponder Role = "responder"
	RoleAdmin     Role = "admin"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   Role
}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrUnauthenticated
	}

	role := RoleCivilian
	if r, ok := claims["role"].(string); ok && r != "" {
		role = Role(r)
	}
	return Identity{UserID: sub, Role: role}, nil
}

// Issue signs a token for the given identity. The real issuer is the auth
// collaborator; this is used for local development and tests.
func (v *JWTVerifier) Issue(userID string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	signed, err := tok.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
