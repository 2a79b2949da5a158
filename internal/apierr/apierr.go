package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind classifies a failed call against the backend.
type Kind int

const (
	KindNone Kind = iota
	AuthRequired
	Unauthorized
	InvalidOperation
	NotFound
	NetworkOrServerError
)

func (k Kind) String() string {
	switch k {
	case AuthRequired:
		return "auth_required"
	case Unauthorized:
		return "unauthorized"
	case InvalidOperation:
		return "invalid_operation"
	case NotFound:
		return "not_found"
	case NetworkOrServerError:
		return "network_or_server"
	default:
		return "none"
	}
}

// Error is the typed failure surfaced by the client and the controllers.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind without an HTTP status.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Transport wraps a dial, timeout or decode failure.
func Transport(op string, err error) *Error {
	return &Error{Kind: NetworkOrServerError, Op: op, Err: err}
}

// FromStatus maps an HTTP failure status and its body to a typed error.
func FromStatus(op string, status int, body []byte) *Error {
	e := &Error{Op: op, Status: status, Message: detailMessage(body)}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = Unauthorized
	case status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		e.Kind = InvalidOperation
	case status == http.StatusNotFound:
		e.Kind = NotFound
	default:
		e.Kind = NetworkOrServerError
	}
	return e
}

// maxBodyMessage caps, in bytes, how much of a non-JSON body becomes a message.
const maxBodyMessage = 200

// detailMessage extracts {"detail": "..."} when present, else the trimmed body.
func detailMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	if len(trimmed) > maxBodyMessage {
		cut := maxBodyMessage
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		trimmed = trimmed[:cut]
	}
	return trimmed
}

// KindOf classifies any error. Untyped errors count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return NetworkOrServerError
}

// Classify returns err as an *Error, wrapping untyped errors as transient failures.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Transport(op, err)
}

func IsAuth(err error) bool {
	k := KindOf(err)
	return k == AuthRequired || k == Unauthorized
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns text suitable for a transient status line.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		if err == nil {
			return ""
		}
		return "Something went wrong, try again"
	}
	switch e.Kind {
	case AuthRequired:
		return "Sign in required"
	case Unauthorized:
		return "Session expired, sign in again"
	case InvalidOperation:
		if e.Message != "" {
			return e.Message
		}
		return "That action is not allowed"
	case NotFound:
		return "Not found"
	default:
		return "Network or server error, try again"
	}
}
