package service

import "errors"

var (
	// ErrUnauthorized covers every auth rejection: missing cookie, unknown or
	// expired session, hard cap. Handlers surface it as a detail-free 401.
	ErrUnauthorized = errors.New("service: unauthorized")

	ErrValidation = errors.New("service: invalid input")
	ErrConflict   = errors.New("service: conflict")
	ErrNotFound   = errors.New("service: not found")
	ErrGone       = errors.New("service: expired")
)
