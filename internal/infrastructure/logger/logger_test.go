package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf).WithRun("run-1", "wherex")

	log.LogWriteFailed("opp-9", "A1", errors.New("sheets down"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "submission_log_write_failed", entry["msg"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "wherex", entry["portal"])
	assert.Equal(t, "A1", entry["product_code"])
	assert.Equal(t, "sheets down", entry["error"])
}

func TestNew_DevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("development", &buf)

	log.Debug("matching", "text", "detergente")

	assert.True(t, strings.Contains(buf.String(), "level=DEBUG"))
	assert.True(t, strings.Contains(buf.String(), "text=detergente"))
}

func TestAttachmentMissing_IsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.AttachmentMissing("A1", "datasheet", "/fichas/A1.pdf", errors.New("attachment missing: no such file"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "datasheet", entry["kind"])
	assert.Equal(t, "attachment missing: no such file", entry["error"])
}
