package auth

import "errors"

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("wrong username or password")
	ErrInvalidUsername    = errors.New("invalid username format")
)
