package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporalLogger_RenamesSDKTags(t *testing.T) {
	var buf bytes.Buffer
	l := NewTemporalLogger(zerolog.New(&buf))

	l.Warn("workflow task failed",
		"WorkflowID", "clo-check-123",
		"RunID", "run-1",
		"Error", errors.New("deadline exceeded"),
		"dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "temporal-sdk", entry["component"])
	assert.Equal(t, "clo-check-123", entry["job_id"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "deadline exceeded", entry["error"])
	assert.Equal(t, "dangling", entry["extra"])
	assert.NotContains(t, entry, "WorkflowID")
}

func TestTemporalLogger_With(t *testing.T) {
	var buf bytes.Buffer
	parent := NewTemporalLogger(zerolog.New(&buf))

	child := parent.With("Namespace", "syllabus-review")
	child.Info("poller started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "syllabus-review", entry["namespace"])

	buf.Reset()
	parent.Info("no fields")
	entry = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "namespace")
}
