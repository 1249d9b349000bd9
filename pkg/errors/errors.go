package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentExists      = errors.New("document already exists")
	ErrShardUnavailable    = errors.New("shard unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInternal            = errors.New("internal error")
	ErrTimeout             = errors.New("operation timed out")
)

// Kind is the closed set of query-engine error kinds. Unlike the sentinel
// errors above (which classify ingestion/gateway failures), Kind classifies
// failures inside the cluster/indexer/searcher subsystems so that pipeline
// and transport code can switch on a small enum instead of chaining
// errors.Is calls.
type Kind int

const (
	KindOk Kind = iota
	KindTimedOut
	KindOutOfMemory
	KindParseArgs
	KindSyntax
	KindLimit
	KindExpr
	KindNoIndex
	KindNoDoc
	KindBadKeyType
	KindTransportClosed
	KindNoRoute
	KindNoNode
	KindNoConnection
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "Ok"
	case KindTimedOut:
		return "TimedOut"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindParseArgs:
		return "ParseArgs"
	case KindSyntax:
		return "Syntax"
	case KindLimit:
		return "Limit"
	case KindExpr:
		return "Expr"
	case KindNoIndex:
		return "NoIndex"
	case KindNoDoc:
		return "NoDoc"
	case KindBadKeyType:
		return "BadKeyType"
	case KindTransportClosed:
		return "TransportClosed"
	case KindNoRoute:
		return "NoRoute"
	case KindNoNode:
		return "NoNode"
	case KindNoConnection:
		return "NoConnection"
	default:
		return "Generic"
	}
}

// replyPrefix returns the textual error-reply prefix spec.md §6 requires
// ("ERR timeout", "ERR syntax …", "ERR parsing arguments: …", etc.).
func (k Kind) replyPrefix() string {
	switch k {
	case KindTimedOut:
		return "ERR timeout"
	case KindOutOfMemory:
		return "ERR out of memory"
	case KindParseArgs:
		return "ERR parsing arguments"
	case KindSyntax:
		return "ERR syntax"
	case KindLimit:
		return "ERR limit"
	case KindExpr:
		return "ERR expression"
	case KindNoIndex:
		return "ERR no such index"
	case KindNoDoc:
		return "ERR no such document"
	case KindBadKeyType:
		return "ERR wrong key type"
	case KindTransportClosed:
		return "ERR transport closed"
	case KindNoRoute:
		return "ERR no route"
	case KindNoNode:
		return "ERR no node"
	case KindNoConnection:
		return "ERR no connection"
	default:
		return "ERR"
	}
}

// QueryError carries a closed Kind alongside a human-readable message, for
// the cluster/indexer/searcher code paths described in spec.md §7.
type QueryError struct {
	Kind    Kind
	Message string
}

func (e *QueryError) Error() string {
	if e.Message == "" {
		return e.Kind.replyPrefix()
	}
	return fmt.Sprintf("%s: %s", e.Kind.replyPrefix(), e.Message)
}

// NewQueryError constructs a QueryError of the given kind.
func NewQueryError(kind Kind, format string, args ...any) *QueryError {
	return &QueryError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *QueryError; otherwise it returns KindGeneric.
func KindOf(err error) Kind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return KindGeneric
}

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	var qe *QueryError
	if errors.As(err, &qe) {
		switch qe.Kind {
		case KindOk:
			return http.StatusOK
		case KindTimedOut:
			return http.StatusGatewayTimeout
		case KindOutOfMemory:
			return http.StatusInsufficientStorage
		case KindParseArgs, KindSyntax, KindLimit, KindExpr:
			return http.StatusBadRequest
		case KindNoIndex, KindNoDoc:
			return http.StatusNotFound
		case KindBadKeyType:
			return http.StatusConflict
		case KindTransportClosed, KindNoRoute, KindNoNode, KindNoConnection:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentExists), errors.Is(err, ErrIdempotencyConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrShardUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}

}
