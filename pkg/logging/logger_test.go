package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_BaseAttributesAndContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{
		Level:       LevelInfo,
		ServiceName: "job-lifecycle",
		Environment: "test",
		Version:     "1.0.0",
		InstanceID:  "api-1",
		Output:      &buf,
	})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithActor(ctx, "U1", "designer")
	logger.WithContext(ctx).WithJob("job-1", "JC-1").Info("Transitioned job")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "job-lifecycle", entry["service"])
	assert.Equal(t, "api-1", entry["instance"])
	assert.Equal(t, "req-1", entry["requestId"])
	assert.Equal(t, "U1", entry["actorId"])
	assert.Equal(t, "designer", entry["actorRole"])
	assert.Equal(t, "JC-1", entry["jobCardId"])
	assert.Equal(t, "job-lifecycle", logger.ServiceName())
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: LevelWarn, ServiceName: "test", Output: &buf})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.WithError(assert.AnError).Warn("shown")
	entry := decodeLine(t, &buf)
	assert.Equal(t, assert.AnError.Error(), entry["error"])
}

func TestActorFromContext(t *testing.T) {
	id, role := ActorFromContext(context.Background())
	assert.Empty(t, id)
	assert.Empty(t, role)

	id, role = ActorFromContext(ContextWithActor(context.Background(), "U7", "hod"))
	assert.Equal(t, "U7", id)
	assert.Equal(t, "hod", role)
}
