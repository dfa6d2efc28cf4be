package service

import "errors"

var (
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)

// Error carries a client-facing message for one of the sentinel kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func badRequest(msg string) error {
	return newError(ErrBadRequest, msg)
}

var (
	errInvalidCredentials = newError(ErrUnauthorized, "Invalid email or password")
	errInvalidToken       = newError(ErrUnauthorized, "Could not validate credentials")
	errEmailRegistered    = newError(ErrConflict, "Email already registered")
	errUserNotFound       = newError(ErrNotFound, "User not found")
	errPrefsNotFound      = newError(ErrNotFound, "User preferences not found")
)
