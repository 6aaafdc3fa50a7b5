package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("desk-1", RoleClerk, testSecret, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "desk-1", claims.Operator)
	assert.Equal(t, RoleClerk, claims.Role)
}

func TestGenerateToken_RejectsBadClaims(t *testing.T) {
	_, err := GenerateToken("", RoleAdmin, testSecret, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = GenerateToken("desk-1", "root", testSecret, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestValidateToken(t *testing.T) {
	validToken, err := GenerateToken("desk-1", RoleViewer, testSecret, 24*time.Hour)
	require.NoError(t, err)

	expiredToken, err := GenerateToken("desk-1", RoleViewer, testSecret, -1*time.Hour)
	require.NoError(t, err)

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "desk-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noRoleToken, err := noRole.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{
			name:      "expired token",
			token:     expiredToken,
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenExpired,
		},
		{
			name:      "wrong secret",
			token:     validToken,
			secret:    "wrong-secret",
			wantErrIs: jwt.ErrTokenSignatureInvalid,
		},
		{
			name:      "malformed token",
			token:     "not.a.valid.jwt",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
		{
			name:      "empty token",
			token:     "",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
		{
			name:      "missing role",
			token:     noRoleToken,
			secret:    testSecret,
			wantErrIs: ErrInvalidClaims,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateToken(tc.token, tc.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestValidateToken_RejectsNonHMAC(t *testing.T) {
	// Algorithm confusion: a token signed with "none" should be rejected
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "desk-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: string(RoleAdmin),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed, testSecret)
	require.Error(t, err)
}

func TestRoleAllows(t *testing.T) {
	assert.True(t, RoleAdmin.Allows(RoleClerk))
	assert.True(t, RoleClerk.Allows(RoleClerk))
	assert.False(t, RoleViewer.Allows(RoleClerk))
	assert.False(t, Role("").Allows(RoleViewer))
}
