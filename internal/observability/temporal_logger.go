package observability

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// temporalFieldNames maps the SDK's tag names onto the field names the rest
// of the service logs with. Every AI job runs as one workflow, so a workflow
// ID is a job ID.
var temporalFieldNames = map[string]string{
	"WorkflowID":   "job_id",
	"RunID":        "run_id",
	"WorkflowType": "workflow_type",
	"ActivityID":   "activity_id",
	"ActivityType": "activity_type",
	"TaskQueue":    "task_queue",
	"Namespace":    "namespace",
	"Attempt":      "attempt",
	"Error":        "error",
}

// TemporalLogger adapts zerolog to the Temporal SDK's log.Logger.
type TemporalLogger struct {
	logger zerolog.Logger
}

var _ log.WithLogger = (*TemporalLogger)(nil)

// NewTemporalLogger tags every entry with component=temporal-sdk.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug().Fields(keyvalToMap(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info().Fields(keyvalToMap(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn().Fields(keyvalToMap(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error().Fields(keyvalToMap(keyvals)).Msg(msg)
}

// With returns a child logger carrying keyvals on every entry.
func (l *TemporalLogger) With(keyvals ...interface{}) log.Logger {
	return &TemporalLogger{logger: l.logger.With().Fields(keyvalToMap(keyvals)).Logger()}
}

// keyvalToMap turns alternating key-value pairs into zerolog fields. Known
// SDK tags are renamed; errors are stored as their message; a trailing key
// without a value is kept under "extra".
func keyvalToMap(keyvals []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keyvals)/2+1)
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		if i+1 == len(keyvals) {
			m["extra"] = key
			break
		}
		if renamed, ok := temporalFieldNames[key]; ok {
			key = renamed
		}
		val := keyvals[i+1]
		if err, ok := val.(error); ok && err != nil {
			val = err.Error()
		}
		m[key] = val
	}
	return m
}
