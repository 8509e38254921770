package model

import "errors"

var validationErrors = []error{
	ErrUsernameTooShort,
	ErrUsernameTooLong,
	ErrPasswordTooShort,
	ErrInvalidEmail,
	ErrEmptyMessage,
	ErrMessageTooLong,
}

// IsValidation reports whether err is a client input error.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
