package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	defer func() { Default = nil }()

	ForAdapter("Arbuz").Info().Str("category", "Бакалея").Msg("category parsed")
	LogError("store", errors.New("duplicate key"), "upsert failed for %s", "42")

	out := buf.String()
	assert.Contains(t, out, `"adapter":"Arbuz"`)
	assert.Contains(t, out, `"category":"Бакалея"`)
	assert.Contains(t, out, `"component":"store"`)
	assert.Contains(t, out, "upsert failed for 42")
	assert.Contains(t, out, "duplicate key")
}

func TestWithErrorAndDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	t.Setenv("LOG_LEVEL", "info")
	InitWithWriter(&buf)
	defer func() { Default = nil }()
	assert.False(t, IsDebugEnabled())

	ForStore().WithError(errors.New("connection refused")).Warn().Msg("ping failed")
	assert.Contains(t, buf.String(), `"error":"connection refused"`)

	t.Setenv("LOG_LEVEL", "debug")
	InitWithWriter(&buf)
	assert.True(t, IsDebugEnabled())
}
