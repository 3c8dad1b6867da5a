package auth

import (
	"errors"
	"reflect"
	"strings"
	"unicode/utf16"

	"github.com/go-playground/validator/v10"

	"github.com/capabusiness/verification/internal/errorz"
)

const (
	// passwordSymbols are the special characters a password needs at least one of.
	passwordSymbols = "#?!@$%^&*-"
	minPasswordLen  = 8
)

// Messages shown next to form fields when validation fails.
const (
	MsgEmailRequired    = "Email is required"
	MsgEmailInvalid     = "Must be a valid email"
	MsgEmailTooLong     = "Email must be at most 255 characters"
	MsgPasswordRequired = "Password is required"
	MsgPasswordTooLong  = "Password must be at most 255 characters"
	MsgPasswordWeak     = "Password must contain at least eight characters, one upper case letter, one lower case letter, one digit and one special character. Example: Password12#"
)

var fieldMessages = map[string]map[string]string{
	"email": {
		"required": MsgEmailRequired,
		"email":    MsgEmailInvalid,
		"max":      MsgEmailTooLong,
	},
	"password": {
		"required":       MsgPasswordRequired,
		"max":            MsgPasswordTooLong,
		"strongpassword": MsgPasswordWeak,
	},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their form name, so errors can be keyed by the
	// same name the views use.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("schema"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	err := v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return IsStrongPassword(fl.Field().String())
	})
	if err != nil {
		panic("failed to register password validation: " + err.Error())
	}

	return v
}

// FieldError is a failed validation rule for a single form field.
// Its message is meant to be shown to the user.
type FieldError struct {
	Rule    string
	message string
}

func (e FieldError) Error() string {
	return e.message
}

// CredentialsForm is the raw input of the login and registration forms.
type CredentialsForm struct {
	Email    string `schema:"email" validate:"required,email,max=255"`
	Password string `schema:"password" validate:"required,max=255,strongpassword"`
}

// Credentials are validated login credentials. They only live for the
// duration of a single form submission.
type Credentials struct {
	Email    string
	Password Password
}

// Parse validates the form. Only the first failing rule of each field is
// reported, as an errorz.InvalidInput keyed by field name.
func (f CredentialsForm) Parse() (Credentials, error) {
	if err := validateStruct(f); err != nil {
		return Credentials{}, err
	}

	return Credentials{
		Email:    f.Email,
		Password: NewPassword(f.Password),
	}, nil
}

// EmailForm is the raw input of the password reset form.
type EmailForm struct {
	Email string `schema:"email" validate:"required,email,max=255"`
}

// Parse validates the form and returns the email address.
func (f EmailForm) Parse() (string, error) {
	if err := validateStruct(f); err != nil {
		return "", err
	}

	return f.Email, nil
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	invalid := make(errorz.InvalidInput, 0, len(verrs))
	for _, fe := range verrs {
		invalid = append(invalid, errorz.Keyed{
			Key: fe.Field(),
			Err: FieldError{
				Rule:    fe.Tag(),
				message: fieldMessage(fe),
			},
		})
	}

	return invalid
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()][fe.Tag()]; ok {
		return msg
	}
	return fe.Error()
}

// IsStrongPassword reports whether pwd has at least eight characters
// without line breaks, including an upper case letter, a lower case
// letter, a digit and one of the passwordSymbols.
//
// Characters are counted in UTF-16 code units, the way the browser counts
// them, so a character outside the Basic Multilingual Plane counts twice.
func IsStrongPassword(pwd string) bool {
	var n int
	var upper, lower, digit, symbol bool

	for _, r := range pwd {
		switch {
		case r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029':
			return false
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
		n += utf16.RuneLen(r)
	}

	return n >= minPasswordLen && upper && lower && digit && symbol
}
