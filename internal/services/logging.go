package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/SAP-F-2025/vrp-import-service/internal/wizard"
)

// LogLevel represents different log levels for service operations
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// ServiceLogger provides structured logging for import operations and pipeline stages
type ServiceLogger struct {
	logger *slog.Logger
	config LogConfig
}

type LogConfig struct {
	Service     string
	Component   string
	EnableDebug bool
}

func NewServiceLogger(logger *slog.Logger, config LogConfig) *ServiceLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceLogger{
		logger: logger.With("service", config.Service, "component", config.Component),
		config: config,
	}
}

// ===== OPERATION LOGGING =====

func (l *ServiceLogger) LogOperation(ctx context.Context, operation, owner, sessionID string, duration time.Duration, err error) {
	logLevel := LogLevelInfo
	status := "success"

	if err != nil {
		logLevel = LogLevelError
		status = "error"

		// Adjust log level based on error type
		switch {
		case IsValidation(err) || IsParse(err):
			logLevel = LogLevelWarn
			status = "validation_error"
		case IsBlocking(err):
			logLevel = LogLevelInfo
			status = "blocked"
		case IsConflict(err):
			logLevel = LogLevelWarn
			status = "conflict"
		case IsNotFound(err):
			logLevel = LogLevelInfo
			status = "not_found"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("owner", owner),
		slog.String("session_id", sessionID),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))

		var blocking *BlockingError
		var validationErr ValidationErrors
		if errors.As(err, &blocking) {
			attrs = append(attrs,
				slog.String("step", string(blocking.Step)),
				slog.Int("blocking_rows", len(blocking.Rows)),
				slog.Int("blocking_fields", len(blocking.Fields)),
			)
		} else if errors.As(err, &validationErr) {
			attrs = append(attrs, slog.Int("validation_errors_count", len(validationErr)))
		}
	}

	if requestID, ok := ctx.Value("request_id").(string); ok {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	// Add caller information for errors
	if logLevel == LogLevelError {
		if pc, file, line, ok := runtime.Caller(2); ok {
			if fn := runtime.FuncForPC(pc); fn != nil {
				attrs = append(attrs,
					slog.String("caller_func", fn.Name()),
					slog.String("caller_file", file),
					slog.Int("caller_line", line),
				)
			}
		}
	}

	message := fmt.Sprintf("%s operation %s", operation, status)

	switch logLevel {
	case LogLevelDebug:
		if l.config.EnableDebug {
			l.logger.LogAttrs(ctx, slog.LevelDebug, message, attrs...)
		}
	case LogLevelInfo:
		l.logger.LogAttrs(ctx, slog.LevelInfo, message, attrs...)
	case LogLevelWarn:
		l.logger.LogAttrs(ctx, slog.LevelWarn, message, attrs...)
	case LogLevelError:
		l.logger.LogAttrs(ctx, slog.LevelError, message, attrs...)
	}
}

// ===== STAGE LOGGING =====

// LogStage records the outcome of a pipeline recomputation
func (l *ServiceLogger) LogStage(ctx context.Context, sessionID string, snap wizard.Snapshot) {
	attrs := []slog.Attr{
		slog.String("session_id", sessionID),
		slog.String("step", string(snap.Step)),
		slog.Int("revision", snap.Revision),
		slog.Int("rows", len(snap.Rows)),
		slog.Int("errors", snap.Report.ErrorCount()),
		slog.Int("warnings", snap.Report.WarningCount()),
		slog.Int("duplicates", len(snap.Duplicates)),
		slog.Int("location_resolutions", len(snap.Locations)),
	}
	if snap.Mappings != nil {
		attrs = append(attrs, slog.Any("missing_required", snap.Mappings.MissingRequired()))
	}

	l.logger.LogAttrs(ctx, slog.LevelDebug, "Import stage computed", attrs...)
}

// ===== ERROR RECOVERY LOGGING =====

func (l *ServiceLogger) LogRecovery(ctx context.Context, operation, sessionID string, recovered interface{}, stack []byte) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("session_id", sessionID),
		slog.Any("panic_value", recovered),
		slog.String("stack_trace", string(stack)),
	}

	l.logger.LogAttrs(ctx, slog.LevelError, "Panic recovered", attrs...)
}

// ===== MIDDLEWARE AND HELPERS =====

// ContextualLogger wraps operations with automatic logging
type ContextualLogger struct {
	logger    *ServiceLogger
	operation string
	owner     string
	startTime time.Time
	ctx       context.Context
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, owner string) *ContextualLogger {
	return &ContextualLogger{
		logger:    l,
		operation: operation,
		owner:     owner,
		startTime: time.Now(),
		ctx:       ctx,
	}
}

func (cl *ContextualLogger) LogResult(sessionID string, err error) {
	cl.logger.LogOperation(cl.ctx, cl.operation, cl.owner, sessionID, time.Since(cl.startTime), err)
}

// ===== ERROR FORMATTING HELPERS =====

func FormatError(err error) map[string]interface{} {
	if err == nil {
		return nil
	}

	result := map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}

	var blocking *BlockingError
	var validationErrs ValidationErrors

	switch {
	case errors.As(err, &blocking):
		result["type"] = "blocking"
		result["step"] = blocking.Step
		result["reason"] = blocking.Reason
		if len(blocking.Rows) > 0 {
			result["rows"] = blocking.Rows
		}
		if len(blocking.Fields) > 0 {
			result["fields"] = blocking.Fields
		}

	case errors.As(err, &validationErrs):
		result["type"] = "validation"
		result["count"] = len(validationErrs)

		fields := make([]map[string]interface{}, len(validationErrs))
		for i, validationErr := range validationErrs {
			fields[i] = map[string]interface{}{
				"field":   validationErr.Field,
				"message": validationErr.Message,
				"value":   validationErr.Value,
			}
		}
		result["errors"] = fields

	case IsParse(err):
		result["type"] = "parse"
	case IsNotFound(err):
		result["type"] = "not_found"
	case IsForbidden(err):
		result["type"] = "forbidden"
	case IsConflict(err):
		result["type"] = "conflict"
	case IsValidation(err):
		result["type"] = "validation"
	}

	return result
}
