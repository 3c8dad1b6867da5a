package errorz

import (
	"errors"
	"strings"
)

// InvalidInput signals that a provided input is invalid due to the wrapped errors.
type InvalidInput []error

func (e InvalidInput) Error() string {
	var b strings.Builder
	b.WriteString("invalid input:\n")
	for _, err := range e {
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

func (e InvalidInput) Unwrap() []error {
	return e
}

// Message returns the message of the first keyed error for key, or an
// empty string if key has no errors. Views use it to show a message
// next to the offending form field.
func (e InvalidInput) Message(key string) string {
	for _, err := range e {
		var k Keyed
		if errors.As(err, &k) && k.Key == key {
			return k.Err.Error()
		}
	}
	return ""
}

// Has reports whether key has at least one error.
func (e InvalidInput) Has(key string) bool {
	return e.Message(key) != ""
}

// Unkeyed returns the errors that do not belong to a named input.
func (e InvalidInput) Unkeyed() []error {
	var errs []error
	for _, err := range e {
		var k Keyed
		if !errors.As(err, &k) {
			errs = append(errs, err)
		}
	}
	return errs
}
