// Package errs centralizes classification of provider and wallet errors.
// Raw provider error text is never shown to users; every failure that
// crosses the API boundary carries a Kind and a safe message.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a class of failure
type Kind int

const (
	// Unknown is any failure without a recognized signature
	Unknown Kind = iota
	// RateLimited covers provider throttling (HTTP 429, code -32005, "over rate limit")
	RateLimited
	// BackendUnhealthy covers free-tier load balancer exhaustion (code -32011)
	BackendUnhealthy
	// Timeout covers request timeouts and deadline expiry
	Timeout
	// UserRejected means the wallet holder declined the transaction
	UserRejected
	// InsufficientFunds means the sender balance cannot cover value plus gas
	InsufficientFunds
	// WrongNetwork means the wallet is connected to an unexpected chain
	WrongNetwork
	// Reverted means the node predicts or reports transaction revert
	Reverted
	// NotConfigured means a required address or key is absent from configuration
	NotConfigured
)

// String returns the kind's stable identifier
func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case BackendUnhealthy:
		return "backend_unhealthy"
	case Timeout:
		return "timeout"
	case UserRejected:
		return "user_rejected"
	case InsufficientFunds:
		return "insufficient_funds"
	case WrongNetwork:
		return "wrong_network"
	case Reverted:
		return "reverted"
	case NotConfigured:
		return "not_configured"
	default:
		return "unknown"
	}
}

// Error is a classified failure carrying a user-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a user-safe message
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around an underlying cause
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// jsonRPCError matches go-ethereum's rpc.Error without naming the package
type jsonRPCError interface {
	Error() string
	ErrorCode() int
}

const (
	codeBackendUnhealthy = -32011
	codeRateLimited      = -32005
)

// KindOf returns the Kind of an already classified error, or Unknown
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Unknown
}

// Classify inspects an error and assigns it a Kind. Already classified
// errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var rpcErr jsonRPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeBackendUnhealthy:
			return Wrap(BackendUnhealthy, "The network provider is overloaded. Please try again.", err)
		case codeRateLimited:
			return Wrap(RateLimited, "Too many requests. Please slow down and try again.", err)
		}
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied"):
		return Wrap(UserRejected, "Transaction cancelled.", err)
	case strings.Contains(msg, "insufficient funds"):
		return Wrap(InsufficientFunds, "Insufficient funds to cover the amount plus gas.", err)
	case strings.Contains(msg, "no backend is currently healthy"):
		return Wrap(BackendUnhealthy, "The network provider is overloaded. Please try again.", err)
	case strings.Contains(msg, "over rate limit") || strings.Contains(msg, "429"):
		return Wrap(RateLimited, "Too many requests. Please slow down and try again.", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded"):
		return Wrap(Timeout, "The network request timed out. Please try again.", err)
	case strings.Contains(msg, "chain mismatch") || strings.Contains(msg, "wrong network") ||
		strings.Contains(msg, "does not match the target chain"):
		return Wrap(WrongNetwork, "Wallet is connected to the wrong network.", err)
	case strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert"):
		return Wrap(Reverted, "The transaction would fail. Please check the details and try again.", err)
	default:
		return Wrap(Unknown, "Something went wrong. Please try again.", err)
	}
}

// IsTransient reports whether retrying the same call may succeed.
// Only provider-side pressure and timeouts qualify; user decisions,
// balance problems and reverts never do.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err).Kind {
	case RateLimited, BackendUnhealthy, Timeout:
		return true
	default:
		return false
	}
}
