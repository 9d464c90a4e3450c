package coreerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error_WithAndWithoutCorrelationID(t *testing.T) {
	e := New(KindNotFound, "entity missing")
	assert.Equal(t, "[not_found] entity missing", e.Error())

	e.WithCorrelationID("turn_abc123")
	assert.Equal(t, "[not_found] entity missing (correlation_id=turn_abc123)", e.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	e := Wrap(KindServiceUnavailable, "redis unreachable", cause)

	require.ErrorIs(t, e, cause)
	assert.Same(t, cause, errors.Unwrap(e))
}

func TestKindOf_NonTaxonomyError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestKindOf_WrappedTaxonomyError(t *testing.T) {
	inner := New(KindTimeout, "deadline exceeded")
	outer := fmt.Errorf("dispatch failed: %w", inner)
	assert.Equal(t, KindTimeout, KindOf(outer))
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"service unavailable", ServiceUnavailable(nil, "cache down"), true},
		{"timeout", Timeout(nil, "query exceeded deadline"), true},
		{"bad input", BadInput("missing field"), false},
		{"not found", NotFound("entity %s", "x"), false},
		{"session expired", SessionExpired("expired"), false},
		{"internal", Internal(nil, "panic recovered"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := SessionExpired("session %s expired", "sess_1")
	assert.True(t, Is(err, KindSessionExpired))
	assert.False(t, Is(err, KindNotFound))
}
