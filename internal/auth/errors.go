package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	// ErrInvalidCredentials covers every authentication failure; the cause is logged, never returned.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrForbidden          = errors.New("auth: insufficient permissions")
	ErrInactive           = errors.New("auth: account inactive")
	ErrProtected          = errors.New("auth: system actor is protected")
)
