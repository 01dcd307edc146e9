package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionTokens signs the session handle into the cookie value so a client
// cannot mint or alter handles.
type SessionTokens struct {
	secret []byte
	issuer string
}

func NewSessionTokens(secret, issuer string) *SessionTokens {
	return &SessionTokens{secret: []byte(secret), issuer: issuer}
}

func (s *SessionTokens) Sign(handle string, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        handle,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse returns the handle carried by a cookie value.
func (s *SessionTokens) Parse(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}
	return claims.ID, nil
}
