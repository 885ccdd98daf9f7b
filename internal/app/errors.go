package service

import "errors"

var (
	// ErrNotStarted is returned by import operations before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrUserNotFound is returned when a user id or email is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering a taken email.
	ErrUserExists = errors.New("user already exists")
	// ErrEventNotFound is returned when an event is missing or owned by someone else.
	ErrEventNotFound = errors.New("event not found")
)
