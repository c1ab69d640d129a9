package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPCError struct {
	code int
	msg  string
}

func (e *fakeRPCError) Error() string  { return e.msg }
func (e *fakeRPCError) ErrorCode() int { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil kind default", errors.New("boom"), Unknown},
		{"backend unhealthy code", &fakeRPCError{code: -32011, msg: "load balancer"}, BackendUnhealthy},
		{"rate limit code", &fakeRPCError{code: -32005, msg: "limit exceeded"}, RateLimited},
		{"backend unhealthy text", errors.New("no backend is currently healthy to serve traffic"), BackendUnhealthy},
		{"rate limit text", errors.New("request failed: over rate limit"), RateLimited},
		{"http 429", errors.New("unexpected status 429"), RateLimited},
		{"timeout", errors.New("request timeout after 30s"), Timeout},
		{"deadline", errors.New("context deadline exceeded"), Timeout},
		{"user rejected", errors.New("User rejected the request"), UserRejected},
		{"user denied", errors.New("MetaMask Tx Signature: User denied transaction signature"), UserRejected},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), InsufficientFunds},
		{"chain mismatch", errors.New("the current chain of the wallet does not match the target chain"), WrongNetwork},
		{"revert", errors.New("execution reverted: not owner"), Reverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassifyPassesThroughClassified(t *testing.T) {
	orig := New(NotConfigured, "Jar creation is not configured.")
	wrapped := fmt.Errorf("create jar: %w", orig)

	got := Classify(wrapped)
	assert.Equal(t, NotConfigured, got.Kind)
	assert.Equal(t, orig.Message, got.Message)
}

func TestClassifyWrappedRPCError(t *testing.T) {
	err := fmt.Errorf("filter logs: %w", &fakeRPCError{code: -32011, msg: "exhausted"})
	assert.Equal(t, BackendUnhealthy, Classify(err).Kind)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&fakeRPCError{code: -32011, msg: "x"}))
	assert.True(t, IsTransient(errors.New("over rate limit")))
	assert.True(t, IsTransient(errors.New("timeout")))
	assert.False(t, IsTransient(errors.New("User rejected the request")))
	assert.False(t, IsTransient(errors.New("insufficient funds")))
	assert.False(t, IsTransient(errors.New("execution reverted")))
	assert.False(t, IsTransient(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Equal(t, Reverted, KindOf(fmt.Errorf("tip: %w", New(Reverted, "would fail"))))
}

func TestErrorMessageDoesNotLeakCause(t *testing.T) {
	cause := errors.New("POST https://rpc.internal:8545 secret-token rejected")
	classified := Classify(cause)

	assert.NotContains(t, classified.Message, "rpc.internal")
	assert.ErrorIs(t, classified, cause)
}
