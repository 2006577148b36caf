package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Output: &buf})

	l.WithFields(map[string]interface{}{"component": "claims"}).
		Error(errors.New("db down"), "failed to append claim", "claim_id", "c-1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "failed to append claim", entry["message"])
	assert.Equal(t, "db down", entry["error"])
	assert.Equal(t, "claims", entry["component"])
	assert.Equal(t, "c-1", entry["claim_id"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: WarnLevel, Output: &buf})

	l.Info("verification ok")
	assert.Empty(t, buf.String())

	l.Warn("verification slow")
	assert.Contains(t, buf.String(), "verification slow")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
}
