package service

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrMissingToken       = errors.New("no refresh token")
	ErrUserNotFound       = errors.New("user not found")

	// ErrTokenNotFound means the signature checked out but no record
	// matched: the token was revoked or never issued by this store.
	ErrTokenNotFound = errors.New("refresh token not found")
)
