// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextWithSessionID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
		want string
	}{
		{name: "nil context", ctx: nil, id: "0190-abc", want: "0190-abc"},
		{name: "background context", ctx: context.Background(), id: "0190-def", want: "0190-def"},
		{name: "empty id", ctx: context.Background(), id: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			//nolint:staticcheck // nil context is part of the contract under test
			ctx := ContextWithSessionID(tt.ctx, tt.id)
			assert.Equal(t, tt.want, SessionIDFromContext(ctx))
		})
	}
}

func TestFromContextWithoutValues(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract under test
	assert.Equal(t, "", SessionIDFromContext(nil))
	//nolint:staticcheck // nil context is part of the contract under test
	assert.Equal(t, "", CommandFromContext(nil))
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithSessionID(context.Background(), "sess-1")
	ctx = ContextWithCommand(ctx, "vote")

	l := WithContext(ctx, base)
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sess-1", entry[FieldSessionID])
	assert.Equal(t, "vote", entry[FieldCommand])
}

func TestWithContextLeavesLoggerUntouched(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	l := WithContext(context.Background(), base)
	l.Info().Msg("plain")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, has := entry[FieldSessionID]
	assert.False(t, has)
}

func TestConfigureWritesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "lykos-test", Version: "v0"})
	t.Cleanup(func() { Configure(Config{Output: &bytes.Buffer{}}) })

	l := WithComponent("events")
	l.Debug().Str(FieldEvent, "del_player").Msg("dispatch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "lykos-test", entry["service"])
	assert.Equal(t, "events", entry[FieldComponent])
	assert.Equal(t, "del_player", entry[FieldEvent])
}
