package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims of a connection ticket. ClientID identifies the browser session the
// ticket was issued to; it is not a user account.
type Claims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

var ErrEmptySecret = errors.New("auth: empty secret")

func Sign(secret []byte, clientID string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func Verify(secret []byte, token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.ClientID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Service issues and checks connection tickets with one secret.
type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret []byte, ttl time.Duration) *Service {
	return &Service{secret: secret, ttl: ttl}
}

func (s *Service) Issue(clientID string) (string, time.Time, error) {
	tok, err := Sign(s.secret, clientID, s.ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, time.Now().Add(s.ttl), nil
}

func (s *Service) Verify(token string) (*Claims, error) {
	return Verify(s.secret, token)
}
