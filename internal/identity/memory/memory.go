// Package memory implements auth.IdentityProvider in memory. It is meant
// for local development and tests, accounts are lost on restart.
package memory

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/capabusiness/verification/internal/auth"
)

var ErrUnknownToken = errors.New("unknown id token")

// MessageKind identifies the kind of out-of-band email.
type MessageKind string

const (
	MessageVerifyEmail   MessageKind = "verify-email"
	MessagePasswordReset MessageKind = "password-reset"
)

// Message is an out-of-band email the provider would have sent.
type Message struct {
	Kind  MessageKind
	Email string
}

type account struct {
	auth.Account
	password string
	disabled bool
}

// Provider keeps accounts in memory. Emails are logged instead of sent.
type Provider struct {
	logger     *slog.Logger
	autoVerify bool

	mu       sync.Mutex
	accounts map[string]*account
	tokens   map[string]string
	messages []Message
	nextID   int
}

// NewProvider creates an empty provider. When autoVerify is true new
// accounts are verified immediately.
func NewProvider(logger *slog.Logger, autoVerify bool) *Provider {
	return &Provider{
		logger:     logger,
		autoVerify: autoVerify,
		accounts:   make(map[string]*account),
		tokens:     make(map[string]string),
	}
}

// Add creates or replaces an account.
func (p *Provider) Add(email, password string, verified bool) auth.Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc := p.newAccount(email, password)
	acc.EmailVerified = verified
	return acc.Account
}

// SetVerified marks the account for email as (un)verified.
func (p *Provider) SetVerified(email string, verified bool) error {
	return p.update(email, func(a *account) { a.EmailVerified = verified })
}

// SetDisabled (un)blocks sign in for the account with email.
func (p *Provider) SetDisabled(email string, disabled bool) error {
	return p.update(email, func(a *account) { a.disabled = disabled })
}

// Messages returns the out-of-band emails sent so far.
func (p *Provider) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}

func (p *Provider) SignIn(ctx context.Context, email string, pwd auth.Password) (auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return auth.Account{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[key(email)]
	if !ok {
		return auth.Account{}, auth.ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(acc.password), []byte(pwd.SecretValue())) != 1 {
		return auth.Account{}, auth.ErrInvalidCredentials
	}

	if acc.disabled {
		return auth.Account{}, auth.ErrAccountDisabled
	}

	return acc.Account, nil
}

func (p *Provider) SignUp(ctx context.Context, email string, pwd auth.Password) (auth.Account, auth.IDToken, error) {
	if err := ctx.Err(); err != nil {
		return auth.Account{}, auth.IDToken{}, err
	}

	token, err := newToken()
	if err != nil {
		return auth.Account{}, auth.IDToken{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[key(email)]; ok {
		return auth.Account{}, auth.IDToken{}, auth.ErrAccountExists
	}

	acc := p.newAccount(email, pwd.SecretValue())
	acc.EmailVerified = p.autoVerify
	p.tokens[token] = key(email)

	p.logger.InfoContext(ctx, "account created", "account_id", acc.ID, "verified", acc.EmailVerified)

	return acc.Account, auth.NewIDToken(token), nil
}

func (p *Provider) SendEmailVerification(ctx context.Context, token auth.IDToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.tokens[token.SecretValue()]
	if !ok {
		return ErrUnknownToken
	}

	p.send(ctx, MessageVerifyEmail, p.accounts[email].Email)
	return nil
}

func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[key(email)]
	if !ok {
		return auth.ErrAccountNotFound
	}

	p.send(ctx, MessagePasswordReset, acc.Email)
	return nil
}

// newAccount must be called with p.mu held.
func (p *Provider) newAccount(email, password string) *account {
	p.nextID++
	acc := &account{
		Account: auth.Account{
			ID:    fmt.Sprintf("mem-%d", p.nextID),
			Email: email,
		},
		password: password,
	}
	p.accounts[key(email)] = acc
	return acc
}

func (p *Provider) update(email string, f func(*account)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc, ok := p.accounts[key(email)]
	if !ok {
		return auth.ErrAccountNotFound
	}

	f(acc)
	return nil
}

// send must be called with p.mu held.
func (p *Provider) send(ctx context.Context, kind MessageKind, email string) {
	p.messages = append(p.messages, Message{Kind: kind, Email: email})
	p.logger.InfoContext(ctx, "send identity email", "kind", kind, "recipient", email)
}

func key(email string) string {
	return strings.ToLower(email)
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
