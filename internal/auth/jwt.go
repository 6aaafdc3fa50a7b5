package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClerk  Role = "clerk"
	RoleViewer Role = "viewer"
)

var roleRank = map[Role]int{RoleViewer: 1, RoleClerk: 2, RoleAdmin: 3}

func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// Allows reports whether r carries at least the privileges of min.
func (r Role) Allows(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

var ErrInvalidClaims = errors.New("invalid token claims")

// Claims identify the operator acting on the ledger.
type Claims struct {
	Operator string
	Role     Role
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func GenerateToken(operator string, role Role, secret string, expiry time.Duration) (string, error) {
	if operator == "" || !role.IsValid() {
		return "", fmt.Errorf("GenerateToken: %w", ErrInvalidClaims)
	}
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

func ValidateToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("ValidateToken: %w", ErrInvalidClaims)
	}

	role := Role(tc.Role)
	if tc.Subject == "" || !role.IsValid() {
		return nil, fmt.Errorf("ValidateToken: %w", ErrInvalidClaims)
	}

	return &Claims{
		Operator: tc.Subject,
		Role:     role,
	}, nil
}
