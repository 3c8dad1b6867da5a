// Package firebase implements auth.IdentityProvider on top of the
// Firebase Identity Toolkit REST API.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	"github.com/capabusiness/verification/internal/auth"
	"github.com/capabusiness/verification/internal/krypto"
)

// DefaultAPIURL is the base URL of the Identity Toolkit v1 API.
const DefaultAPIURL = "https://identitytoolkit.googleapis.com/v1"

const (
	opSignIn      = "accounts:signInWithPassword"
	opSignUp      = "accounts:signUp"
	opSendOobCode = "accounts:sendOobCode"

	oobVerifyEmail   = "VERIFY_EMAIL"
	oobPasswordReset = "PASSWORD_RESET"

	// maxResponseBytes caps how much of a response body we read.
	maxResponseBytes = 1 << 20
)

// Settings contains the settings for the Identity Toolkit API.
type Settings struct {
	APIURL *url.URL
	APIKey krypto.Secret
}

// Provider signs users in and up using the Identity Toolkit API.
type Provider struct {
	client   *http.Client
	settings Settings
	parser   *jwt.Parser
}

// NewProvider creates a new provider.
func NewProvider(client *http.Client, s Settings) *Provider {
	return &Provider{
		client:   client,
		settings: s,
		parser:   jwt.NewParser(),
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type authResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

type oobRequest struct {
	RequestType string `json:"requestType"`
	IDToken     string `json:"idToken,omitempty"`
	Email       string `json:"email,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// idTokenClaims are the claims we read from the ID token.
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// SignIn checks the email and password with the identity provider.
func (p *Provider) SignIn(ctx context.Context, email string, pwd auth.Password) (auth.Account, error) {
	var res authResponse
	err := p.call(ctx, opSignIn, passwordRequest{
		Email:             email,
		Password:          pwd.SecretValue(),
		ReturnSecureToken: true,
	}, &res)
	if err != nil {
		return auth.Account{}, err
	}

	return p.account(opSignIn, res)
}

// SignUp creates a new account. The returned token can be used to send
// a verification email.
func (p *Provider) SignUp(ctx context.Context, email string, pwd auth.Password) (auth.Account, auth.IDToken, error) {
	var res authResponse
	err := p.call(ctx, opSignUp, passwordRequest{
		Email:             email,
		Password:          pwd.SecretValue(),
		ReturnSecureToken: true,
	}, &res)
	if err != nil {
		return auth.Account{}, auth.IDToken{}, err
	}

	acc, err := p.account(opSignUp, res)
	if err != nil {
		return auth.Account{}, auth.IDToken{}, err
	}

	return acc, auth.NewIDToken(res.IDToken), nil
}

// SendEmailVerification asks the provider to email a verification link
// to the owner of the token.
func (p *Provider) SendEmailVerification(ctx context.Context, token auth.IDToken) error {
	return p.call(ctx, opSendOobCode, oobRequest{
		RequestType: oobVerifyEmail,
		IDToken:     token.SecretValue(),
	}, nil)
}

// SendPasswordReset asks the provider to email a password reset link.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	return p.call(ctx, opSendOobCode, oobRequest{
		RequestType: oobPasswordReset,
		Email:       email,
	}, nil)
}

// account builds the account from an auth response. The sign in response
// does not contain the verification status, it is read from the ID token.
// The token is not verified: it was just handed to us by the provider over
// a connection we opened, and it is not used for anything else.
func (p *Provider) account(op string, res authResponse) (auth.Account, error) {
	var claims idTokenClaims
	_, _, err := p.parser.ParseUnverified(res.IDToken, &claims)
	if err != nil {
		return auth.Account{}, oops.In("identity").With("operation", op).Wrapf(err, "failed to parse id token")
	}

	if claims.Subject != res.LocalID {
		return auth.Account{}, oops.In("identity").With("operation", op).Errorf("id token subject does not match account id")
	}

	email := res.Email
	if email == "" {
		email = claims.Email
	}

	return auth.Account{
		ID:            res.LocalID,
		Email:         email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// call posts in as JSON to the API method op and decodes the response in out.
// out may be nil if the response is not needed.
func (p *Provider) call(ctx context.Context, op string, in, out any) error {
	errb := oops.In("identity").With("operation", op)

	var b bytes.Buffer
	err := json.NewEncoder(&b).Encode(in)
	if err != nil {
		return errb.Wrapf(err, "failed to encode request json")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.methodURL(op), &b)
	if err != nil {
		return errb.Wrapf(err, "failed to create request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errb.Wrapf(redactKey(err), "failed to send request")
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errb.Wrapf(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		var res errorResponse
		err = json.Unmarshal(body, &res)
		if err != nil || res.Error.Message == "" {
			return errb.With("status", resp.StatusCode).Errorf("request did not succeed, status code %d", resp.StatusCode)
		}

		return mapError(op, resp.StatusCode, res.Error.Message)
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return errb.Wrapf(err, "failed to decode response")
	}

	return nil
}

func (p *Provider) methodURL(op string) string {
	u := p.settings.APIURL.JoinPath(op)
	q := u.Query()
	q.Set("key", p.settings.APIKey.SecretValue())
	u.RawQuery = q.Encode()
	return u.String()
}

// mapError maps an API error message to the auth errors. Messages are
// codes, sometimes followed by details: "TOO_MANY_ATTEMPTS_TRY_LATER : ...".
func mapError(op string, status int, msg string) error {
	code, _, _ := strings.Cut(msg, " ")
	errb := oops.In("identity").Code(code).With("operation", op, "status", status)

	switch code {
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_PASSWORD", "INVALID_EMAIL":
		if op == opSendOobCode {
			return errb.Wrap(auth.ErrAccountNotFound)
		}
		return errb.Wrap(auth.ErrInvalidCredentials)
	case "EMAIL_NOT_FOUND":
		if op == opSendOobCode {
			return errb.Wrap(auth.ErrAccountNotFound)
		}
		return errb.Wrap(auth.ErrInvalidCredentials)
	case "USER_DISABLED":
		return errb.Wrap(auth.ErrAccountDisabled)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return errb.Wrap(auth.ErrTooManyAttempts)
	case "EMAIL_EXISTS":
		return errb.Wrap(auth.ErrAccountExists)
	default:
		return errb.Errorf("identity provider error: %s", msg)
	}
}

// redactKey removes the API key from errors that include the request URL.
func redactKey(err error) error {
	var uErr *url.Error
	if !errors.As(err, &uErr) {
		return err
	}

	u, parseErr := url.Parse(uErr.URL)
	if parseErr != nil {
		return fmt.Errorf("%s: %w", uErr.Op, uErr.Err)
	}

	q := u.Query()
	if q.Has("key") {
		q.Set("key", krypto.SecretMarker)
		u.RawQuery = q.Encode()
	}

	return &url.Error{Op: uErr.Op, URL: u.String(), Err: uErr.Err}
}
