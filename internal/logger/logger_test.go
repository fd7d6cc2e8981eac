package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/tenant"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestCommands_Run(t *testing.T) {
	var buf bytes.Buffer
	commands := NewCommands(New(&buf, false))

	ctx := tenant.WithTenant(context.Background(), "acme")
	err := commands.Run(ctx, "locate", func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "info", lines[0]["level"])
	require.Equal(t, "locate", lines[0]["command"])
	require.Equal(t, "acme", lines[0]["tenant"])
	require.Equal(t, "command finished", lines[0]["message"])
}

func TestCommands_RunFailureLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
		code  string
	}{
		{
			name:  "caller error",
			err:   apperr.NotFound(apperr.CodeAssetNotFound, "asset not found"),
			level: "warn",
			code:  apperr.CodeAssetNotFound,
		},
		{
			name:  "unclassified",
			err:   errors.New("boom"),
			level: "error",
			code:  apperr.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			commands := NewCommands(New(&buf, false))

			err := commands.Run(context.Background(), "delete", func(ctx context.Context) error {
				return tt.err
			})
			require.ErrorIs(t, err, tt.err)

			lines := decodeLines(t, &buf)
			require.Len(t, lines, 1)
			require.Equal(t, tt.level, lines[0]["level"])
			require.Equal(t, tt.code, lines[0]["code"])
			require.NotContains(t, lines[0], "tenant")
		})
	}
}
