// Package auth resolves the caller's identity. Tokens are issued by the
// directory-backed identity provider; this service only verifies them.
package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

var (
	ErrMissingCredentials = errors.New("authorization header required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
)

type Identity struct {
	Username   string
	Email      string
	EmployeeID string
	Department string
	Groups     []string
}

func (i Identity) InGroup(group string) bool {
	return slices.Contains(i.Groups, group)
}

type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

type identityKeyType struct{}

var identityKey identityKeyType

func NewContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
