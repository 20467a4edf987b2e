// Package identity resolves who is acting: current user ID, admin capability,
// and an explicit readiness gate for callers that must wait until the initial
// auth state is known.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrUnauthenticated means no current user.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrUnauthorized means the current user lacks admin capability.
	ErrUnauthorized = errors.New("not authorized")
	// ErrInvalidCredentials covers bad email/password pairs and bad tokens.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an email that already has
	// an account.
	ErrEmailTaken = errors.New("email already registered")
)

// Provider is the identity contract the engine consumes.
type Provider interface {
	// CurrentUserID reports the acting user, false when signed out.
	CurrentUserID() (string, bool)

	// IsAdmin reports whether the current user has admin capability.
	IsAdmin() bool

	// Loading reports whether the initial auth state is still resolving.
	Loading() bool

	// AwaitReady blocks until the auth state has resolved or ctx is done.
	AwaitReady(ctx context.Context) error
}

// Static is a fixed identity, ready immediately. Used per-request on the HTTP
// surface and throughout the tests.
type Static struct {
	UserID string
	Admin  bool
}

func (s Static) CurrentUserID() (string, bool) { return s.UserID, s.UserID != "" }
func (s Static) IsAdmin() bool                 { return s.Admin }
func (s Static) Loading() bool                 { return false }
func (s Static) AwaitReady(context.Context) error {
	return nil
}
