package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult_PlainJSON(t *testing.T) {
	res, err := parseResult(`{"Plausible": true, "Reason": "verdict matches confidence"}`)

	require.NoError(t, err)
	assert.True(t, res.Plausible)
	assert.Equal(t, "verdict matches confidence", res.Reason)
}

func TestParseResult_JSONWrappedInProse(t *testing.T) {
	raw := "Sure, here is my audit:\n```json\n{\"Plausible\": false, \"Reason\": \"verdict argues NO\"}\n```\nDone."
	res, err := parseResult(raw)

	require.NoError(t, err)
	assert.False(t, res.Plausible)
}

func TestParseResult_EmptyAndGarbage(t *testing.T) {
	_, err := parseResult("")
	assert.Error(t, err)

	_, err = parseResult("not json at all")
	assert.Error(t, err)
}

func TestNewService_RequiresLLM(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}
