package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/metrics"
	"github.com/opsloop/triage/internal/models"
)

// Invoker executes tool calls against the registry. It never returns an
// error: unknown tools, timeouts, transport failures, and tool-reported
// errors all come back as a failed ToolInvocationResult so the caller can
// record them as evidence.
type Invoker struct {
	registry *Registry
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewInvoker creates an invoker with the given per-call timeout.
func NewInvoker(registry *Registry, timeout time.Duration, m *metrics.Metrics) *Invoker {
	return &Invoker{
		registry: registry,
		timeout:  timeout,
		metrics:  m,
	}
}

// Catalog returns the registry's aggregated tool catalog.
func (inv *Invoker) Catalog() []models.ToolDescriptor {
	return inv.registry.Catalog()
}

// Invoke calls the named tool with the given arguments. The call is
// bounded by the invoker's timeout on top of any deadline in ctx.
func (inv *Invoker) Invoke(ctx context.Context, name string, args map[string]interface{}) *models.ToolInvocationResult {
	start := time.Now()
	result := &models.ToolInvocationResult{
		ToolName:  name,
		Arguments: args,
	}

	finish := func(output string, succeeded bool) *models.ToolInvocationResult {
		result.Output = output
		result.Succeeded = succeeded
		result.Duration = time.Since(start)

		outcome := "ok"
		if !succeeded {
			outcome = "error"
		}
		if inv.metrics != nil {
			inv.metrics.ToolInvocations.WithLabelValues(name, outcome).Inc()
			inv.metrics.ToolDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
		}

		logger.DebugWithFields("Tool invocation finished",
			logging.Field("tool", name),
			logging.Field("succeeded", succeeded),
			logging.Field("duration_ms", result.Duration.Milliseconds()),
			logging.Field("correlation_id", logging.CorrelationIDFrom(ctx)))
		return result
	}

	sess, err := inv.registry.lookup(name)
	if err != nil {
		return finish(err.Error(), false)
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	req := mcptypes.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	callResult, err := sess.CallTool(callCtx, req)
	if err != nil {
		// Attribute the timeout to the invoker's own deadline only when
		// the caller's context is still alive; an expired caller deadline
		// is reported as the failure it is.
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return finish(fmt.Sprintf("tool %q timed out after %s", name, inv.timeout), false)
		}
		return finish(fmt.Sprintf("tool %q call failed: %v", name, err), false)
	}
	if callResult == nil {
		return finish(fmt.Sprintf("tool %q returned no result", name), false)
	}

	text := flattenContent(callResult.Content)
	if callResult.IsError {
		if text == "" {
			text = fmt.Sprintf("tool %q reported an error", name)
		}
		return finish(text, false)
	}
	return finish(text, true)
}

// flattenContent joins the text blocks of a tool result. Non-text content
// is noted by type rather than dropped silently.
func flattenContent(content []mcptypes.Content) string {
	var sb strings.Builder
	for _, c := range content {
		switch block := c.(type) {
		case mcptypes.TextContent:
			sb.WriteString(block.Text)
		case *mcptypes.TextContent:
			sb.WriteString(block.Text)
		default:
			fmt.Fprintf(&sb, "[unsupported content type %T]", c)
		}
	}
	return sb.String()
}
