package user

import (
	"errors"
	"fmt"
)

// Kinds callers switch on. Every sentinel below wraps exactly one of them.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

var (
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrEmailNotFound  = fmt.Errorf("email %w", ErrNotFound)
	ErrUsernameExists = fmt.Errorf("username %w", ErrAlreadyExists)
	ErrEmailExists    = fmt.Errorf("email %w", ErrAlreadyExists)

	// ErrInvalidCredentials deliberately does not say which half was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDisabled    = errors.New("account disabled")
)
