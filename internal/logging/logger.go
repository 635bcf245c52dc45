// Package logging provides structured logging for the triage service.
//
// It offers named, leveled loggers with structured key-value fields.
// Loggers are immutable: WithField, WithFields and WithContext return
// new instances, so a logger can be shared across goroutines without
// coordination.
//
// Initialize the global logger once at startup:
//
//	logging.Initialize("info")
//
// Then obtain a named logger per component:
//
//	logger := logging.GetLogger("mcp.registry")
//	logger.Info("connected to %d providers", n)
//
// Structured fields are preferred for anything that gets searched later:
//
//	logger.InfoWithFields("tool invoked",
//	    logging.Field("tool", name),
//	    logging.Field("duration_ms", elapsed.Milliseconds()),
//	)
//
// A context carrying a correlation ID or incident ID (see WithCorrelationID
// and WithIncidentID) is picked up automatically:
//
//	ctxLogger := logger.WithContext(ctx)
//	ctxLogger.Info("reasoning step complete")
//	// output includes correlation_id=... incident_id=...
//
// Per-package level overrides are supported for targeted debugging,
// e.g. {"mcp.*": "debug"} lowers the level for all mcp packages only.
package logging

import (
	"context"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *Logger
	initOnce     sync.Once
	// exitFunc is called by Fatal. Overridable for tests.
	exitFunc = os.Exit
)

// Initialize sets up the global logger with the given default level and
// optional per-package level overrides such as {"mcp.*": "debug"}.
func Initialize(levelStr string, packageLevels ...map[string]string) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		level = INFO
	}

	globalLogger = &Logger{
		level: level,
		name:  "triage",
	}

	if len(packageLevels) > 0 && packageLevels[0] != nil {
		if err := SetPackageLogLevels(packageLevels[0]); err != nil {
			return err
		}
	}

	return nil
}

// GetLogger returns a logger with the given component name.
// The global logger is lazily initialized at INFO on first use.
func GetLogger(name string) *Logger {
	initOnce.Do(func() {
		if globalLogger == nil {
			_ = Initialize("info")
		}
	})
	return &Logger{
		level:  globalLogger.level,
		name:   name,
		fields: make(map[string]interface{}),
	}
}

// shouldLog checks the per-package override first, then the logger level.
func (l *Logger) shouldLog(level LogLevel) bool {
	if pkgLevel := GetPackageLogLevel(l.name); pkgLevel >= 0 {
		return level >= pkgLevel
	}
	return level >= l.level
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.logf(strDebug, msg, args...)
	}
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.logf(strInfo, msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.logf(strWarn, msg, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.logf(strError, msg, args...)
	}
}

// Fatal logs a fatal message and exits with code 1.
func (l *Logger) Fatal(msg string, args ...interface{}) {
	if l.shouldLog(FATAL) {
		l.logf(strFatal, msg, args...)
		exitFunc(1)
	}
}

// ErrorWithErr logs an error message together with an error value.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	if l.shouldLog(ERROR) {
		args = append(args, err)
		l.logf(strError, msg+" - %v", args...)
	}
}

// WithName returns a new logger with a different component name.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		level:  l.level,
		name:   name,
		fields: make(map[string]interface{}),
		ctx:    l.ctx,
	}
}

// WithField returns a new logger that includes the given field in every message.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	newLogger := &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
	newLogger.fields[key] = value
	return newLogger
}

// WithFields returns a new logger that includes the given fields in every message.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	newLogger := &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    l.ctx,
	}
	for _, f := range fields {
		newLogger.fields[f.Key] = f.Value
	}
	return newLogger
}

// WithContext returns a new logger that extracts correlation_id and
// incident_id from ctx and includes them in every message.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		level:  l.level,
		name:   l.name,
		fields: cloneFields(l.fields),
		ctx:    ctx,
	}
}

// DebugWithFields logs a debug message with structured fields.
func (l *Logger) DebugWithFields(msg string, fields ...LogField) {
	if l.shouldLog(DEBUG) {
		l.logWithFields(strDebug, msg, fields...)
	}
}

// InfoWithFields logs an info message with structured fields.
func (l *Logger) InfoWithFields(msg string, fields ...LogField) {
	if l.shouldLog(INFO) {
		l.logWithFields(strInfo, msg, fields...)
	}
}

// WarnWithFields logs a warning message with structured fields.
func (l *Logger) WarnWithFields(msg string, fields ...LogField) {
	if l.shouldLog(WARN) {
		l.logWithFields(strWarn, msg, fields...)
	}
}

// ErrorWithFields logs an error message with structured fields.
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) {
	if l.shouldLog(ERROR) {
		l.logWithFields(strError, msg, fields...)
	}
}

// logWithFields merges context fields, persistent fields and call-site
// fields (last wins) and writes the message.
func (l *Logger) logWithFields(level, msg string, fields ...LogField) {
	contextFields := extractContextFields(l.ctx)

	var merged map[string]interface{}
	if contextFields != nil || len(l.fields) > 0 || len(fields) > 0 {
		merged = make(map[string]interface{})
		for k, v := range contextFields {
			merged[k] = v
		}
		for k, v := range l.fields {
			merged[k] = v
		}
		for _, f := range fields {
			merged[f.Key] = f.Value
		}
	}

	l.writeLog(level, msg, merged)
}

func parseLevel(levelStr string) (LogLevel, error) {
	switch strings.ToUpper(levelStr) {
	case strDebug:
		return DEBUG, nil
	case strInfo:
		return INFO, nil
	case strWarn:
		return WARN, nil
	case strError:
		return ERROR, nil
	case strFatal:
		return FATAL, nil
	default:
		return -1, NewLevelError(levelStr)
	}
}
