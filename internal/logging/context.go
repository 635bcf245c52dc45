package logging

import "context"

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	incidentIDKey    contextKey = "incident_id"
)

// WithCorrelationID returns a context carrying the correlation ID of one
// investigation attempt. Loggers created via WithContext include it in
// every message.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// WithIncidentID returns a context carrying the incident ID.
func WithIncidentID(ctx context.Context, incidentID string) context.Context {
	return context.WithValue(ctx, incidentIDKey, incidentID)
}

// CorrelationIDFrom returns the correlation ID stored in ctx, or "".
func CorrelationIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// extractContextFields extracts correlation_id and incident_id from ctx.
// Returns nil if ctx is nil or carries neither.
func extractContextFields(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}

	fields := make(map[string]interface{})

	if correlationID := ctx.Value(correlationIDKey); correlationID != nil {
		fields["correlation_id"] = correlationID
	}

	if incidentID := ctx.Value(incidentIDKey); incidentID != nil {
		fields["incident_id"] = incidentID
	}

	if len(fields) == 0 {
		return nil
	}

	return fields
}
