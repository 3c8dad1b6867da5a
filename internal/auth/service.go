package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// IdentityProvider is the external service that owns accounts, checks
// passwords and tracks whether email addresses are verified.
//
// Implementations report failures using the sentinel errors of this
// package where the provider tells us what went wrong.
type IdentityProvider interface {
	SignIn(ctx context.Context, email string, password Password) (Account, error)
	SignUp(ctx context.Context, email string, password Password) (Account, IDToken, error)
	SendEmailVerification(ctx context.Context, token IDToken) error
	SendPasswordReset(ctx context.Context, email string) error
}

// ErrFunc is a function that handles errors.
type ErrFunc func(error)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// WorkerTimeout is the max duration worker goroutines are allowed
	// to take before they are cancelled.
	WorkerTimeout time.Duration
}

// Service is the type that provides the main rules for
// authentication.
type Service struct {
	provider   IdentityProvider
	wg         *sync.WaitGroup
	errHandler ErrFunc
	cfg        ServiceConfig
}

func NewService(p IdentityProvider, errHandler ErrFunc, cfg ServiceConfig) *Service {
	return &Service{
		provider:   p,
		wg:         &sync.WaitGroup{},
		errHandler: errHandler,
		cfg:        cfg,
	}
}

// Wait waits for all open workers to finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Login signs in with the identity provider. Only accounts with a verified
// email address are accepted, for other accounts the account is returned
// together with ErrEmailNotVerified.
func (s *Service) Login(ctx context.Context, c Credentials) (Account, error) {
	acc, err := s.provider.SignIn(ctx, c.Email, c.Password)
	if err != nil {
		return Account{}, err
	}

	if !acc.EmailVerified {
		return acc, ErrEmailNotVerified
	}

	return acc, nil
}

// Register creates an account with the identity provider and asks it to
// send a verification email. The work is done in a separate goroutine, the
// returned error does not indicate whether an account was created. This
// prevents leaking which email addresses already have an account.
func (s *Service) Register(_ context.Context, c Credentials) error {
	s.work(func(ctx context.Context) error {
		acc, token, err := s.provider.SignUp(ctx, c.Email, c.Password)
		if err != nil {
			return fmt.Errorf("sign up: %w", err)
		}

		if acc.EmailVerified {
			return nil
		}

		err = s.provider.SendEmailVerification(ctx, token)
		if err != nil {
			return fmt.Errorf("send email verification: %w", err)
		}

		return nil
	})

	return nil
}

// RequestPasswordReset asks the identity provider to send a password reset
// email. Like Register, the work is done in a separate goroutine and nothing
// is reported back to the caller.
func (s *Service) RequestPasswordReset(_ context.Context, email string) error {
	s.work(func(ctx context.Context) error {
		err := s.provider.SendPasswordReset(ctx, email)
		if err != nil {
			return fmt.Errorf("send password reset: %w", err)
		}
		return nil
	})

	return nil
}

// work runs f in a tracked goroutine with its own timeout. Request contexts
// are not used here, they are cancelled as soon as the response is written.
func (s *Service) work(f func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WorkerTimeout)
		defer cancel()

		err := f(wCtx)
		if err != nil {
			s.errHandler(err)
		}
	}()
}
