package observability

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	llmhttp "github.com/mprcore/reviewd/internal/adapter/llm/http"
)

// Logger is the structured logging interface the orchestrator depends on.
// Defined here (not in the orchestrator package) so adapters can implement
// it without importing orchestrator, avoiding a dependency cycle.
type Logger interface {
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
}

// ReviewLogger adapts llmhttp.Logger to the orchestrator's Logger interface,
// backed by zerolog so orchestrator-level events share the same structured
// sink as the rest of the service.
type ReviewLogger struct {
	logger llmhttp.Logger
	zl     zerolog.Logger
}

// NewReviewLogger creates a review logger adapter writing JSON lines to stderr.
func NewReviewLogger(logger llmhttp.Logger) Logger {
	return NewReviewLoggerWithWriter(logger, os.Stderr)
}

// NewReviewLoggerWithWriter creates a review logger adapter writing to w.
func NewReviewLoggerWithWriter(logger llmhttp.Logger, w io.Writer) Logger {
	return &ReviewLogger{logger: logger, zl: zerolog.New(w).With().Timestamp().Logger()}
}

// LogWarning logs a warning message with structured fields.
func (l *ReviewLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.zl.Warn().Fields(fields).Msg(message)
}

// LogInfo logs an informational message with structured fields.
func (l *ReviewLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.zl.Info().Fields(fields).Msg(message)
}
