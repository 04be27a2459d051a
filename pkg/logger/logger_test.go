package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	t.Cleanup(func() {
		SetLevel(INFO)
	})
	return &buf
}

func TestComponentFieldsAreEmitted(t *testing.T) {
	buf := captureOutput(t)

	InfoCF("scraper", "Message captured", map[string]interface{}{
		"channel": "42",
		"count":   3,
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "scraper", entry["component"])
	assert.Equal(t, "Message captured", entry["message"])
	assert.Equal(t, "42", entry["channel"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestLevelFiltersLowerEntries(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(WARN)

	DebugC("harness", "hidden")
	InfoC("harness", "hidden")
	WarnC("harness", "shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: DEBUG},
		{in: "INFO", want: INFO},
		{in: "", want: INFO},
		{in: "warning", want: WARN},
		{in: "error", want: ERROR},
		{in: "loud", want: INFO, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
