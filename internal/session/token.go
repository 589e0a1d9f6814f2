package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vogiaan1904/barberqueue/pkg/util"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin   = "admin"
	tokenIssuer = "barberqueue"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator checks the shop's shared admin password. A bcrypt hash,
// when configured, takes precedence over the plain password.
type Authenticator struct {
	plain []byte
	hash  []byte
}

func NewAuthenticator(plain, hash string) *Authenticator {
	a := &Authenticator{plain: []byte(plain)}
	if hash != "" {
		a.hash = []byte(hash)
	}
	return a
}

func (a *Authenticator) Check(password string) error {
	if a.hash != nil {
		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if len(a.plain) == 0 || subtle.ConstantTimeCompare(a.plain, []byte(password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

type TokenIssuer struct {
	secret []byte
	expiry time.Duration
	clock  util.Clock
}

func NewTokenIssuer(secret string, expiry time.Duration, clock util.Clock) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		expiry: expiry,
		clock:  clock,
	}
}

func (i *TokenIssuer) Issue() (string, time.Time, error) {
	now := i.clock.Now()
	exp := now.Add(i.expiry)

	claims := AdminClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   RoleAdmin,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, exp, nil
}

func (i *TokenIssuer) Verify(raw string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return i.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
