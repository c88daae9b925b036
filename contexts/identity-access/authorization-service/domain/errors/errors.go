package errors

import "errors"

var (
	ErrInvalidSubject = errors.New("invalid subject")
	ErrInvalidRole    = errors.New("invalid role")
	ErrInvalidActorID = errors.New("invalid actor id")
	ErrForbidden      = errors.New("forbidden")
)
