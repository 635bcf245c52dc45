package logging

import (
	"fmt"
	"log"
	"os"
	"time"
)

// writeLog formats the message with optional fields and routes it:
// DEBUG/INFO/WARN to stdout, ERROR/FATAL to stderr.
func (l *Logger) writeLog(level, msg string, fields map[string]interface{}) {
	timestamp := fmt.Sprintf("[%s]", GetTimestamp())
	logMsg := fmt.Sprintf("%s [%s] %s: %s", timestamp, level, l.name, msg)

	if len(fields) > 0 {
		logMsg += " |"
		for k, v := range fields {
			logMsg += fmt.Sprintf(" %s=%v", k, v)
		}
	}

	if level == strError || level == strFatal {
		fmt.Fprintf(os.Stderr, "%s\n", logMsg)
	} else {
		log.Println(logMsg)
	}
}

// logf handles printf-style messages, merging context and persistent fields.
func (l *Logger) logf(level, msg string, args ...interface{}) {
	formattedMsg := fmt.Sprintf(msg, args...)

	contextFields := extractContextFields(l.ctx)
	var merged map[string]interface{}

	if contextFields != nil || len(l.fields) > 0 {
		merged = make(map[string]interface{})
		for k, v := range contextFields {
			merged[k] = v
		}
		for k, v := range l.fields {
			merged[k] = v
		}
	}

	l.writeLog(level, formattedMsg, merged)
}

// GetTimestamp returns an RFC3339 timestamp.
// The LOG_TIMESTAMP env var overrides it for deterministic test output.
func GetTimestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}

// cloneFields copies the source field map. Returns an empty map for nil input.
func cloneFields(src map[string]interface{}) map[string]interface{} {
	if len(src) == 0 {
		return make(map[string]interface{})
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
