// Package logging provides structured, leveled logging built on logrus,
// with trace-ID propagation through context.Context and a handful of
// domain-specific event helpers used by the intake and worker paths.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type used for every context value this package
// reads or writes, keeping it out of collision with keys set elsewhere.
type ContextKey string

// TraceIDKey is the context key under which a request's trace ID is
// stored.
const TraceIDKey ContextKey = "trace_id"

// Logger wraps a logrus.Logger tagged with the owning service's name.
type Logger struct {
	*logrus.Logger
	service string
}

// New builds a Logger for service, parsing level (falling back to Info
// on an unrecognized value) and choosing a JSON or text formatter based
// on format.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{
		Logger:  logger,
		service: service,
	}
}

// NewFromEnv constructs a logger using LOG_LEVEL and LOG_FORMAT
// environment variables, defaulting to "info" and "json" when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns a logrus.Entry tagged with the service name and,
// when present, the request's trace ID.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	return entry
}

// WithFields returns a logrus.Entry carrying fields plus the service
// name.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	merged := make(logrus.Fields, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["service"] = l.service
	return l.Logger.WithFields(merged)
}

// WithError returns a logrus.Entry carrying err plus the service name.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{
		"service": l.service,
		"error":   err.Error(),
	})
}

// SetOutput redirects where log lines are written; tests use this to
// capture output.
func (l *Logger) SetOutput(output io.Writer) {
	l.Logger.SetOutput(output)
}

// NewTraceID generates a fresh trace ID for a single request.
func NewTraceID() string {
	return uuid.New().String()
}

// WithTraceID returns a derived context carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID stored on ctx, or "" if none is set.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// LogRequest records a completed HTTP request at Info level.
func (l *Logger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}).Info("HTTP request")
}

// LogJobTransition records a job moving between lifecycle states. It is
// the same transition the job store persists, surfaced as a structured
// log line so an operator can follow one job across both services'
// output without querying the database.
func (l *Logger) LogJobTransition(ctx context.Context, jobID, fromStatus, toStatus string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"job_id": jobID,
		"from":   fromStatus,
		"to":     toStatus,
		"event":  "job_transition",
	}).Info("job status changed")
}

// LogVisionRequest records a call to the vision extraction model.
func (l *Logger) LogVisionRequest(ctx context.Context, jobID string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"job_id":      jobID,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("vision extraction failed")
		return
	}
	entry.Info("vision extraction completed")
}

// LogRegistryLookup records a read-through lookup against the TTB
// registry, including how many records it returned.
func (l *Logger) LogRegistryLookup(ctx context.Context, brand string, resultCount int, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"brand":        brand,
		"result_count": resultCount,
	})
	if err != nil {
		entry.WithError(err).Warn("registry lookup failed")
		return
	}
	entry.Debug("registry lookup completed")
}

// Fatal logs err at Fatal level, which terminates the process. Used
// only during startup, where a failure leaves nothing useful to
// continue running.
func (l *Logger) Fatal(ctx context.Context, message string, err error) {
	l.WithContext(ctx).WithError(err).Fatal(message)
}

// Debug logs message at Debug level with optional structured fields.
func (l *Logger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	if l.Logger.Level >= logrus.DebugLevel {
		l.WithContext(ctx).WithFields(fields).Debug(message)
	}
}

// Info logs message at Info level with optional structured fields.
func (l *Logger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Info(message)
}

// Warn logs message at Warn level with optional structured fields.
func (l *Logger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.WithContext(ctx).WithFields(fields).Warn(message)
}

// Error logs message at Error level along with err and optional
// structured fields.
func (l *Logger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	entry := l.WithContext(ctx)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.WithFields(fields).Error(message)
}
