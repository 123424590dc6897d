// Package fault defines the error taxonomy shared by provider adapters,
// the retry executor and the pipeline driver. Every provider-facing error
// is classified into exactly one Kind; only the driver converts faults
// into terminal project state.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a fault for retry and terminal-state decisions.
type Kind int

const (
	// Unknown covers unclassified errors; treated as terminal.
	Unknown Kind = iota
	// Transient covers network errors, rate limits, provider 5xx and
	// timeouts. Retried per the stage's retry policy.
	Transient
	// BadRequest covers malformed prompts and unprocessable input. Terminal.
	BadRequest
	// AuthFailure covers invalid provider credentials. Terminal and
	// operator-critical.
	AuthFailure
	// ContentRejected covers image content-policy rejections. Non-fatal:
	// the pipeline proceeds with an empty cover URL.
	ContentRejected
	// ContentFault covers empty text or audio despite provider success.
	// Terminal for text; per-page audio faults skip the page.
	ContentFault
	// Speech covers speech-provider-specific faults.
	Speech
	// Store covers artifact-store I/O errors.
	Store
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case BadRequest:
		return "bad_request"
	case AuthFailure:
		return "auth_failure"
	case ContentRejected:
		return "content_rejected"
	case ContentFault:
		return "content_fault"
	case Speech:
		return "speech_failure"
	case Store:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Error is a classified fault. Op names the operation that failed
// (e.g. "openai.complete").
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is New with a formatted message instead of a wrapped error.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind of err. Context deadline and network errors are
// transient even when unwrapped; everything else unclassified is Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient
	}
	return Unknown
}

// IsRetryable reports whether err should be retried by the retry executor.
func IsRetryable(err error) bool {
	return KindOf(err) == Transient
}

// FromHTTPStatus maps an upstream HTTP status to a fault. The caller
// supplies a short body excerpt for the wrapped message.
func FromHTTPStatus(op string, status int, body string) *Error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(AuthFailure, op, err)
	case status == http.StatusTooManyRequests || status >= 500 || status == http.StatusRequestTimeout:
		return New(Transient, op, err)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return New(BadRequest, op, err)
	default:
		return New(Unknown, op, err)
	}
}

// User-facing messages per fault kind. Localisation happens client-side;
// the engine emits the English baseline.
const (
	msgBadRequest  = "We couldn't process this request. Please try a different theme."
	msgUnavailable = "The story service is temporarily unavailable. Please try again later."
)

// UserMessage maps err to the message shown to the requesting user when the
// pipeline fails terminally.
func UserMessage(err error) string {
	switch KindOf(err) {
	case BadRequest, ContentFault:
		return msgBadRequest
	default:
		return msgUnavailable
	}
}
