package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatMetrics(t *testing.T) {
	InitCache("", time.Minute, 10, time.Minute)
	before := GetMetrics()
	IncrToolErrors()
	IncrBridgeSessions()
	IncrTTSRequests()

	after := GetMetrics()
	assert.Equal(t, before["tool_errors"]+1, after["tool_errors"])
	assert.Equal(t, before["bridge_sessions"]+1, after["bridge_sessions"])
	assert.Equal(t, before["tts_requests"]+1, after["tts_requests"])

	out := FormatMetrics()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(after))
	assert.True(t, strings.HasPrefix(lines[0], "llm_calls "))
	assert.Contains(t, out, "tool_errors ")
	assert.Contains(t, out, "cache_misses ")
}
