package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the directory attributes mapped into the token by the
// identity provider.
type Claims struct {
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Email             string   `json:"email,omitempty"`
	EmployeeID        string   `json:"employee_id,omitempty"`
	Department        string   `json:"department,omitempty"`
	Groups            []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, ErrMissingCredentials
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Identity{}, ErrInvalidToken
	}

	var claims Claims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		Username:   username,
		Email:      claims.Email,
		EmployeeID: claims.EmployeeID,
		Department: claims.Department,
		Groups:     claims.Groups,
	}, nil
}

// NoneAuthenticator treats every request as coming from a fixed user.
// Only for local development.
type NoneAuthenticator struct {
	user string
}

func NewNoneAuthenticator(user string) *NoneAuthenticator {
	return &NoneAuthenticator{user: user}
}

func (a *NoneAuthenticator) Authenticate(*http.Request) (Identity, error) {
	return Identity{Username: a.user}, nil
}
