package domain

import "errors"

// Kind classifies failures for callers and the transport layer. Every *Error
// matches its Kind with errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	ErrValidation     Kind = "validation_error"
	ErrConflict       Kind = "conflict"
	ErrAuthentication Kind = "authentication_error"
	ErrNotFound       Kind = "not_found"
	ErrToken          Kind = "token_error"
)

// Error is a classified failure. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func ValidationError(msg string) error { return &Error{Kind: ErrValidation, Message: msg} }
func ConflictError(msg string) error   { return &Error{Kind: ErrConflict, Message: msg} }

// AuthenticationError never says which part of the credential was wrong.
func AuthenticationError(msg string) error { return &Error{Kind: ErrAuthentication, Message: msg} }

func NotFoundError(msg string, cause error) error {
	return &Error{Kind: ErrNotFound, Message: msg, Err: cause}
}

func TokenError(msg string, cause error) error {
	return &Error{Kind: ErrToken, Message: msg, Err: cause}
}

// KindOf returns the Kind of err, or "" when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// Uniform messages for credential failures.
const (
	MsgInvalidCredentials = "invalid credentials"
	MsgCodeNotCorrect     = "code is not correct"
)
