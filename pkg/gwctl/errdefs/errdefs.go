// Package errdefs defines the typed failures returned by the key-set cache,
// the token validator and the login flow.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind represents a failure category.
type Kind string

const (
	KindNetwork              Kind = "network_error"
	KindHTTPStatus           Kind = "http_status_error"
	KindParse                Kind = "parse_error"
	KindKeySetEmpty          Kind = "key_set_empty"
	KindKeyNotFound          Kind = "key_not_found"
	KindSignatureInvalid     Kind = "signature_invalid"
	KindUnsupportedAlgorithm Kind = "unsupported_algorithm"
	KindExpiredToken         Kind = "expired_token"
	KindIssuerMismatch       Kind = "issuer_mismatch"
	KindMissingSubject       Kind = "missing_subject"
	KindMissingToken         Kind = "missing_token"
	KindSessionExpired       Kind = "session_expired"
	KindSessionInvalid       Kind = "session_invalid"
	KindPollTimeout          Kind = "poll_timeout"
	KindLoginFailed          Kind = "login_failed"
	KindStorage              Kind = "storage_error"
)

var kindMessages = map[Kind]string{
	KindNetwork:              "Network error",
	KindHTTPStatus:           "Unexpected HTTP status",
	KindParse:                "Malformed response or token",
	KindKeySetEmpty:          "Key set contains no keys",
	KindKeyNotFound:          "Signing key not found",
	KindSignatureInvalid:     "Token signature is invalid",
	KindUnsupportedAlgorithm: "Unsupported signing algorithm",
	KindExpiredToken:         "Token expired",
	KindIssuerMismatch:       "Token issuer mismatch",
	KindMissingSubject:       "Token subject missing",
	KindMissingToken:         "No token in authenticated response",
	KindSessionExpired:       "Authentication request expired",
	KindSessionInvalid:       "Invalid authentication request",
	KindPollTimeout:          "Authentication timed out",
	KindLoginFailed:          "Authentication failed",
	KindStorage:              "Credential storage failed",
}

// Error carries a Kind plus the optional details some kinds capture.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Body       string
	KeyID      string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Kind)
	}
	switch {
	case e.Kind == KindHTTPStatus:
		base = fmt.Sprintf("%s: HTTP %d - %s", base, e.StatusCode, e.Body)
	case e.Kind == KindKeyNotFound && e.KeyID != "":
		base = fmt.Sprintf("%s: kid=%s", base, e.KeyID)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the default message of kind.
func New(kind Kind, err error) error {
	return &Error{Kind: kind, Message: messageFor(kind), Err: err}
}

// Newf builds an error of kind from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: messageFor(kind), Err: fmt.Errorf(format, args...)}
}

// WithMessage builds an error of kind with a caller-supplied message.
func WithMessage(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// HTTPStatus records a non-success response together with its body.
func HTTPStatus(status int, body string) error {
	return &Error{Kind: KindHTTPStatus, Message: messageFor(KindHTTPStatus), StatusCode: status, Body: body}
}

// KeyNotFound reports that no key in the set matched kid.
func KeyNotFound(kid string) error {
	return &Error{Kind: KindKeyNotFound, Message: messageFor(KindKeyNotFound), KeyID: kid}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func messageFor(kind Kind) string {
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return string(kind)
}
