package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"gowa-broadcast/internal/helper"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLoginDisabled      = errors.New("login is disabled: ADMIN_PASSWORD_HASH is not set")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Auth issues and validates operator access tokens for the single admin
// account configured in the environment.
type Auth struct {
	secret       []byte
	expiry       time.Duration
	username     string
	passwordHash string
}

func NewAuth(secret string, expiry time.Duration, username, passwordHash string) *Auth {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Auth{
		secret:       []byte(secret),
		expiry:       expiry,
		username:     username,
		passwordHash: passwordHash,
	}
}

// Login checks the credentials and returns a signed access token with its
// expiry.
func (a *Auth) Login(username, password string) (string, time.Time, error) {
	if a.passwordHash == "" {
		return "", time.Time{}, ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	if err := helper.VerifyPassword(a.passwordHash, password); err != nil || !userOK {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.GenerateAccessToken(username)
}

func (a *Auth) GenerateAccessToken(username string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(a.expiry)

	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (a *Auth) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
