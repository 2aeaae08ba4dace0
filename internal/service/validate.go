package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/homedisk/internal/errs"
)

// Credential validation errors. All of them wrap errs.ErrValidation.
var (
	ErrUsernameTooShort = fmt.Errorf("%w: username must be at least 4 characters", errs.ErrValidation)
	ErrUsernameTooLong  = fmt.Errorf("%w: username must be at most 25 characters", errs.ErrValidation)
	ErrUsernameInvalid  = fmt.Errorf("%w: username may only contain printable ASCII and no path separators", errs.ErrValidation)
	ErrPasswordTooShort = fmt.Errorf("%w: password must be at least 8 characters", errs.ErrValidation)
)

var validate = validator.New()

type credentials struct {
	Username string `validate:"min=4,max=25,printascii,excludesall=/\\,startsnotwith=."`
	Password string `validate:"min=8"`
}

// ValidateCredentials checks a username/password pair offered for registration.
func ValidateCredentials(username, password string) error {
	err := validate.Struct(credentials{Username: username, Password: password})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	// Report the first failing field; Username is declared first.
	fe := verrs[0]
	switch {
	case fe.Field() == "Password":
		return ErrPasswordTooShort
	case fe.Tag() == "min":
		return ErrUsernameTooShort
	case fe.Tag() == "max":
		return ErrUsernameTooLong
	default:
		return ErrUsernameInvalid
	}
}
