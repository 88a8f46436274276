// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// JobIDKey is the context key for background job ID
	JobIDKey contextKey = "job_id"
	// LeadIDKey is the context key for the lead being processed
	LeadIDKey contextKey = "lead_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports job_id and lead_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if jobID, ok := ctx.Value(JobIDKey).(string); ok && jobID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("job_id", jobID)),
		}
	}

	if leadID, ok := ctx.Value(LeadIDKey).(string); ok && leadID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("lead_id", leadID)),
		}
	}

	return newLogger
}

// WithJobID returns a logger with job ID
func (l *Logger) WithJobID(jobID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("job_id", jobID)),
	}
}

// ScoringError logs a soft scoring failure for a single lead/service pair.
// The pair is excluded from the batch; the batch itself continues.
func (l *Logger) ScoringError(leadID, serviceID string, err error) {
	l.Error("scoring_error",
		slog.String("lead_id", leadID),
		slog.String("service_id", serviceID),
		slog.String("error", err.Error()),
	)
}

// RuleEvalError logs an alert-rule evaluation failure. Rule errors are
// swallowed and never block alert persistence.
func (l *Logger) RuleEvalError(ruleID string, err error) {
	l.Warn("alert_rule_eval_error",
		slog.String("rule_id", ruleID),
		slog.String("error", err.Error()),
	)
}

// RetentionSweep logs the outcome of a best-effort cleanup sweep.
func (l *Logger) RetentionSweep(kind string, deleted int, err error) {
	if err != nil {
		l.Warn("retention_sweep_partial",
			slog.String("kind", kind),
			slog.Int("deleted", deleted),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("retention_sweep",
		slog.String("kind", kind),
		slog.Int("deleted", deleted),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
