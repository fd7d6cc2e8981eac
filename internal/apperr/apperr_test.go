package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := Validation(CodeDuplicateSerial, "serial number %q already exists", "SN-1")

	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, &Error{Kind: KindValidation, Code: CodeDuplicateSerial})
	require.NotErrorIs(t, err, &Error{Kind: KindValidation, Code: CodeDuplicateIdentity})
	require.NotErrorIs(t, err, ErrNotFound)

	wrapped := fmt.Errorf("create failed: %w", err)
	require.ErrorIs(t, wrapped, ErrValidation)
	require.Equal(t, KindValidation, KindOf(wrapped))
	require.Equal(t, CodeDuplicateSerial, CodeOf(wrapped))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable(cause, "tenant %s store unavailable", "acme")

	require.ErrorIs(t, err, cause)
	require.ErrorIs(t, err, ErrUnavailable)
	require.Contains(t, err.Error(), "connection refused")
}

func TestPublic(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "business rule keeps its message",
			err:         BusinessRule(CodeRecoverableAssigned, "asset is recoverable and still assigned"),
			wantCode:    CodeRecoverableAssigned,
			wantMessage: "asset is recoverable and still assigned",
		},
		{
			name:        "internal error is hidden",
			err:         Internal(errors.New("pq: relation does not exist"), "query failed"),
			wantCode:    CodeInternal,
			wantMessage: "internal server error",
		},
		{
			name:        "unclassified error is hidden",
			err:         errors.New("boom"),
			wantCode:    CodeInternal,
			wantMessage: "internal server error",
		},
		{
			name:        "exhausted retries",
			err:         ExhaustedRetries(errors.New("serialization failure"), 3),
			wantCode:    CodeExhaustedRetries,
			wantMessage: "gave up after 3 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message := Public(tt.err)
			require.Equal(t, tt.wantCode, code)
			require.Equal(t, tt.wantMessage, message)
		})
	}
}
