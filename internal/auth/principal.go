// Package auth models the external identity boundary. The core trusts
// the privileged claim as given and performs no authorization of its
// own beyond it.
package auth

import "errors"

// ErrUnauthenticated is returned when a token resolves to no principal.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is an opaque signed-in identity with a privileged claim.
type Principal struct {
	UserID     string
	Privileged bool
}

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(token string) (Principal, error)
}

// StaticAuthenticator grants the privileged claim to holders of a single
// configured admin token. Every other caller is an anonymous student.
type StaticAuthenticator struct {
	adminToken string
}

func NewStaticAuthenticator(adminToken string) *StaticAuthenticator {
	return &StaticAuthenticator{adminToken: adminToken}
}

func (a *StaticAuthenticator) Authenticate(token string) (Principal, error) {
	if a.adminToken != "" && token == a.adminToken {
		return Principal{UserID: "admin", Privileged: true}, nil
	}
	if token != "" {
		return Principal{UserID: token, Privileged: false}, nil
	}
	return Principal{}, ErrUnauthenticated
}
