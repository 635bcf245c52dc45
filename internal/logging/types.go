package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// DEBUG level for detailed debugging information
	DEBUG LogLevel = iota
	// INFO level for informational messages
	INFO
	// WARN level for warning messages
	WARN
	// ERROR level for error messages
	ERROR
	// FATAL level for fatal messages
	FATAL
)

const (
	strDebug = "DEBUG"
	strInfo  = "INFO"
	strWarn  = "WARN"
	strError = "ERROR"
	strFatal = "FATAL"
)

// LogField represents a structured logging field.
type LogField struct {
	Key   string
	Value interface{}
}

// Field creates a structured logging field.
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// Logger provides structured logging throughout the application.
type Logger struct {
	level  LogLevel
	name   string
	fields map[string]interface{}
	ctx    context.Context
}

// LevelError is returned when a level string cannot be parsed.
type LevelError struct {
	level string
}

// NewLevelError creates a LevelError for the given invalid level string.
func NewLevelError(level string) *LevelError {
	return &LevelError{level: level}
}

// Error returns the error message.
func (e *LevelError) Error() string {
	return fmt.Sprintf("invalid level: %s (must be DEBUG, INFO, WARN, ERROR, or FATAL)", e.level)
}

// packageLogLevels stores per-package level overrides.
// Keys are exact names ("mcp.registry") or wildcard patterns ("mcp.*").
var (
	packageLogLevels = make(map[string]LogLevel)
	packageLogMutex  sync.RWMutex
)

// SetPackageLogLevels configures per-package log levels.
// Input format: map["mcp.registry"]="DEBUG" or map["mcp.*"]="INFO".
func SetPackageLogLevels(levels map[string]string) error {
	if levels == nil {
		return nil
	}

	packageLogMutex.Lock()
	defer packageLogMutex.Unlock()

	packageLogLevels = make(map[string]LogLevel)

	for pkg, levelStr := range levels {
		level, err := parseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
		packageLogLevels[pkg] = level
	}

	return nil
}

// GetPackageLogLevel returns the effective level override for a package
// name, preferring exact matches over wildcard patterns and longer
// patterns over shorter ones. Returns -1 when no override applies.
func GetPackageLogLevel(packageName string) LogLevel {
	packageLogMutex.RLock()
	defer packageLogMutex.RUnlock()

	if level, exists := packageLogLevels[packageName]; exists {
		return level
	}

	var best string
	for pattern := range packageLogLevels {
		if !matchesPattern(packageName, pattern) {
			continue
		}
		if len(pattern) > len(best) {
			best = pattern
		}
	}

	if best != "" {
		return packageLogLevels[best]
	}

	return LogLevel(-1)
}

// matchesPattern reports whether packageName matches the pattern.
// "mcp.*" matches "mcp.registry" and "mcp.invoker" but not "store".
func matchesPattern(packageName, pattern string) bool {
	if packageName == pattern {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(packageName, prefix+".")
	}
	return false
}
