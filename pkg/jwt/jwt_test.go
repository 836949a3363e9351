package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	m := NewManager("secret", "vpn_bot")

	token, err := m.Issue()
	require.NoError(t, err)
	require.True(t, m.Verify(token))

	claims, err := m.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "vpn_bot", claims.Issuer)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, TTL, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestValidate_Expired(t *testing.T) {
	m := NewManager("secret", "vpn_bot")
	m.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }
	token, err := m.Issue()
	require.NoError(t, err)

	m.now = time.Now
	require.False(t, m.Verify(token))
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewManager("secret", "vpn_bot").Issue()
	require.NoError(t, err)

	require.False(t, NewManager("other", "vpn_bot").Verify(token))
}

func TestValidate_WrongIssuer(t *testing.T) {
	token, err := NewManager("secret", "someone_else").Issue()
	require.NoError(t, err)

	_, err = NewManager("secret", "vpn_bot").Validate(token)
	require.ErrorIs(t, err, ErrInvalidIssuer)
}

func TestValidate_RejectsNoneAlgorithm(t *testing.T) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    "vpn_bot",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	require.False(t, NewManager("secret", "vpn_bot").Verify(token))
}

func TestValidate_Garbage(t *testing.T) {
	require.False(t, NewManager("secret", "vpn_bot").Verify("not.a.jwt"))
	require.False(t, NewManager("secret", "vpn_bot").Verify(""))
}

func TestSecretMatches(t *testing.T) {
	m := NewManager("secret", "vpn_bot")
	require.True(t, m.SecretMatches("secret"))
	require.False(t, m.SecretMatches("secreT"))
	require.False(t, m.SecretMatches(""))
}
