package users

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidResetToken  = errors.New("invalid or expired token")
	ErrAdminProtected     = errors.New("admin users cannot be deleted")
)
