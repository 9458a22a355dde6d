// Package auth issues and checks the bearer tokens of storefront users.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/rugstore/pkg/config"
	"github.com/example/rugstore/pkg/errs"
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Role   string
	Name   string
}

type Authenticator struct {
	secret    []byte
	issuer    string
	adminRole string
	now       func() time.Time
}

func New(cfg config.AuthConfig) (*Authenticator, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = "admin"
	}
	return &Authenticator{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.Issuer,
		adminRole: adminRole,
		now:       time.Now,
	}, nil
}

// Sign issues an HS256 token for id valid for ttl.
func (a *Authenticator) Sign(id Identity, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: id.UserID,
		Role:   id.Role,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse checks the signature, expiry and issuer of a token.
func (a *Authenticator) Parse(tokenString string) (Identity, error) {
	const op = "auth.Parse"
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, errs.E(op, errs.KindUnauthorized, errors.New("invalid or expired token"))
	}
	if claims.UserID == "" {
		return Identity{}, errs.E(op, errs.KindUnauthorized, errors.New("token has no user"))
	}
	return Identity{UserID: claims.UserID, Role: claims.Role, Name: claims.Name}, nil
}

func (a *Authenticator) IsAdmin(id Identity) bool {
	return id.Role == a.adminRole
}
