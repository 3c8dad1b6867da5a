package auth

import (
	"fmt"
	"log/slog"
)

// SecretMarker is a string we can look for in logs to see if the app
// is accidentally exposing secrets.
const SecretMarker = "<!SECRET_REDACTED!>"

// Password is a plaintext password.
//
// It is only ever forwarded to the identity provider. It should never be
// persisted, logged or exposed in any other way. To protect ourselves from
// accidentally doing so, the type implements several common interfaces
// that would allow it to be used inappropriately.
type Password struct {
	plain string
}

// NewPassword wraps a plaintext password. Use CredentialsForm.Parse to
// also check the password rules.
func NewPassword(plain string) Password {
	return Password{plain: plain}
}

// SecretValue returns the plaintext password so it can be sent to the
// identity provider.
func (p Password) SecretValue() string {
	return p.plain
}

func (p Password) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (p Password) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// LogValue implements the slog.LogValuer interface.
func (p Password) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}

// IDToken is a short lived token issued by the identity provider after
// signing in or signing up. Like a Password it never shows up in output.
type IDToken struct {
	raw string
}

// NewIDToken wraps a raw token returned by the identity provider.
func NewIDToken(raw string) IDToken {
	return IDToken{raw: raw}
}

// SecretValue returns the raw token.
func (t IDToken) SecretValue() string {
	return t.raw
}

func (t IDToken) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (t IDToken) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}

// LogValue implements the slog.LogValuer interface.
func (t IDToken) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}
