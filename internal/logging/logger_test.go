package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	logger := InitWithWriter(&buf, "api-server", "prod", "info")

	logger.Info().Str("request_id", "abc").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api-server", line["service"])
	assert.Equal(t, "abc", line["request_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestInitWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := InitWithWriter(&buf, "svc", "prod", "warn")

	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := InitWithWriter(&buf, "svc", "prod", "debug")

	ctx := WithContext(context.Background(), base.With().Str("request_id", "r-1").Logger())
	FromContext(ctx).Info().Msg("scoped")
	assert.Contains(t, buf.String(), `"request_id":"r-1"`)

	assert.NotNil(t, FromContext(context.Background()))
}
