package jwt

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TTL is the fixed validity of every bearer credential.
const TTL = 24 * time.Hour

var ErrInvalidIssuer = errors.New("invalid issuer")

// Claims carries the registered claims of a bearer credential: issuer tag,
// issued-at, expiry and a unique id.
type Claims struct {
	jwt.RegisteredClaims
}

// Manager mints and verifies the HS256 bearer credentials that authorize
// calls to the redemption API. There is no revocation list; validity is
// purely time-boxed.
type Manager struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewManager(signingKey string, issuer string) *Manager {
	return &Manager{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// Issue creates a signed bearer credential valid for TTL.
func (m *Manager) Issue() (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

// Validate parses and validates a token string, returning claims.
func (m *Manager) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.Issuer != m.issuer {
		return nil, ErrInvalidIssuer
	}

	return claims, nil
}

// Verify reports whether tokenStr carries a valid signature and is unexpired.
func (m *Manager) Verify(tokenStr string) bool {
	_, err := m.Validate(tokenStr)
	return err == nil
}

// SecretMatches compares candidate with the signing secret in constant time.
func (m *Manager) SecretMatches(candidate string) bool {
	if candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), m.signingKey) == 1
}
