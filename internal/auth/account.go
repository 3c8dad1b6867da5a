package auth

import "errors"

var (
	// ErrEmailNotVerified is returned by Service.Login when the credentials
	// are valid but the owner has not confirmed the email address yet.
	ErrEmailNotVerified = errors.New("email address not verified")

	// The errors below are returned by IdentityProvider implementations.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrAccountExists      = errors.New("account already exists")
	ErrAccountNotFound    = errors.New("account not found")
)

// Account contains the identity facts the provider returns for a user.
// The provider owns the account, we never store it.
type Account struct {
	ID            string
	Email         string
	EmailVerified bool
}
