package domain

import "errors"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUnauthorized    = errors.New("caller not allowed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid project state")
	ErrDeadlinePassed  = errors.New("deadline passed")
	// ErrTransferFailed means the payout was rejected after the project had
	// already been committed as resolved. It is not rolled back.
	ErrTransferFailed = errors.New("transfer failed")
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrForbidden          = errors.New("access forbidden")
)
