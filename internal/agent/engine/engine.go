// Package engine implements the bounded reasoning and tool-execution loop
// that drives an incident investigation.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsloop/triage/internal/agent/provider"
	"github.com/opsloop/triage/internal/logging"
	"github.com/opsloop/triage/internal/metrics"
	"github.com/opsloop/triage/internal/models"
)

var logger = logging.GetLogger("agent.engine")

// ToolExecutor exposes the tool catalog and invocation to the engine.
// *mcp.Invoker satisfies it.
type ToolExecutor interface {
	Catalog() []models.ToolDescriptor
	Invoke(ctx context.Context, name string, args map[string]interface{}) *models.ToolInvocationResult
}

// Fallback produces a best-effort result when the model cannot be made to
// deliver a final analysis. The correlation engine satisfies it.
type Fallback interface {
	Correlate(description string, evidence []models.EvidenceItem) (*models.InvestigationResult, bool)
}

// Options configures an Engine.
type Options struct {
	// MaxIterations bounds the number of reasoning calls per
	// investigation. Zero means the default of 10.
	MaxIterations int

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Fallback is optional.
	Fallback Fallback
}

// Engine runs investigations: it feeds the incident to the reasoning
// service, executes the tools the model requests, and loops until the
// model delivers a final analysis or the iteration budget is spent.
//
// Tool failures never terminate an investigation; they are fed back to
// the model as evidence. Only a reasoning failure is fatal.
type Engine struct {
	provider provider.Provider
	tools    ToolExecutor
	opts     Options

	now func() time.Time
}

// New creates an investigation engine.
func New(p provider.Provider, tools ToolExecutor, opts Options) *Engine {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 10
	}
	return &Engine{
		provider: p,
		tools:    tools,
		opts:     opts,
		now:      time.Now,
	}
}

// Investigate runs one investigation to completion. The returned error is
// non-nil only when the reasoning service failed terminally; everything
// else resolves to a result.
func (e *Engine) Investigate(ctx context.Context, incidentID, description string) (*models.InvestigationResult, error) {
	ctx = logging.WithIncidentID(ctx, incidentID)

	catalog := e.tools.Catalog()
	tools := toToolDefinitions(catalog)

	logger.InfoWithFields("Investigation started",
		logging.Field("incident_id", incidentID),
		logging.Field("provider", e.provider.Name()),
		logging.Field("model", e.provider.Model()),
		logging.Field("tools", len(tools)))

	messages := []provider.Message{{
		Role:    provider.RoleUser,
		Content: investigatePrompt + description,
	}}

	var evidence []models.EvidenceItem
	var toolCalls []models.ToolCallRecord

	for iteration := 1; iteration <= e.opts.MaxIterations; iteration++ {
		resp, err := e.chat(ctx, messages, tools)
		if err != nil {
			return nil, fmt.Errorf("investigation reasoning failed at iteration %d: %w", iteration, err)
		}

		messages = append(messages, provider.Message{
			Role:    provider.RoleAssistant,
			Content: resp.Content,
			ToolUse: resp.ToolCalls,
		})

		// A turn without tool requests is the final analysis. Text
		// alongside tool requests is intermediate reasoning, not an
		// answer, so the loop continues.
		if len(resp.ToolCalls) == 0 {
			logger.InfoWithFields("Investigation concluded",
				logging.Field("incident_id", incidentID),
				logging.Field("iterations", iteration),
				logging.Field("tool_calls", len(toolCalls)))
			return e.buildResult(description, resp.Content, evidence, toolCalls), nil
		}

		results := e.executeToolCalls(ctx, resp.ToolCalls)

		toolResults := make([]provider.ToolResultBlock, 0, len(results))
		for i, res := range results {
			call := resp.ToolCalls[i]
			evidence = append(evidence, models.EvidenceItem{
				Source:    res.ToolName,
				Arguments: res.Arguments,
				Content:   res.Output,
				Timestamp: e.now().UTC(),
			})
			toolCalls = append(toolCalls, models.ToolCallRecord{
				Tool:      res.ToolName,
				Arguments: res.Arguments,
				Timestamp: e.now().UTC(),
			})
			toolResults = append(toolResults, provider.ToolResultBlock{
				ToolUseID: call.ID,
				Name:      call.Name,
				Content:   res.Output,
				IsError:   !res.Succeeded,
			})
		}
		messages = append(messages, provider.Message{
			Role:       provider.RoleUser,
			ToolResult: toolResults,
		})
	}

	return e.concludeBestEffort(ctx, incidentID, description, messages, evidence, toolCalls)
}

// concludeBestEffort handles iteration budget exhaustion: one last
// reasoning call with no tools on offer, then the correlation fallback.
func (e *Engine) concludeBestEffort(ctx context.Context, incidentID, description string, messages []provider.Message, evidence []models.EvidenceItem, toolCalls []models.ToolCallRecord) (*models.InvestigationResult, error) {
	logger.WarnWithFields("Iteration budget exhausted, forcing final analysis",
		logging.Field("incident_id", incidentID),
		logging.Field("max_iterations", e.opts.MaxIterations))

	messages = append(messages, provider.Message{
		Role:    provider.RoleUser,
		Content: summarizePrompt,
	})

	resp, err := e.chat(ctx, messages, nil)
	if err == nil && resp.Content != "" {
		return e.buildResult(description, resp.Content, evidence, toolCalls), nil
	}
	if err != nil {
		logger.WarnWithFields("Forced final analysis failed, using correlation fallback",
			logging.Field("incident_id", incidentID),
			logging.Field("error", err.Error()))
	}

	if e.opts.Fallback != nil {
		if result, ok := e.opts.Fallback.Correlate(description, evidence); ok {
			result.Evidence = append(evidence, result.Evidence...)
			result.ToolCalls = toolCalls
			return result, nil
		}
	}

	return &models.InvestigationResult{
		RootCause:  "Investigation inconclusive: iteration budget exhausted before a root cause was determined",
		Confidence: models.ConfidenceLow,
		Evidence:   evidence,
		Reasoning:  "The investigation reached its step limit without a final analysis from the reasoning service.",
		ToolCalls:  toolCalls,
	}, nil
}

// chat performs one reasoning call. Timeouts and retries are the
// provider's concern: a timed-out attempt must be retryable, so the
// engine must not put a deadline over the whole retry chain.
func (e *Engine) chat(ctx context.Context, messages []provider.Message, tools []provider.ToolDefinition) (*provider.Response, error) {
	resp, err := e.provider.Chat(ctx, systemPrompt, messages, tools)

	if e.opts.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.opts.Metrics.ReasoningCalls.WithLabelValues(outcome).Inc()
	}
	return resp, err
}

// executeToolCalls runs all tool requests from one assistant turn
// concurrently. Results are positionally aligned with the requests.
func (e *Engine) executeToolCalls(ctx context.Context, calls []provider.ToolUseBlock) []*models.ToolInvocationResult {
	results := make([]*models.ToolInvocationResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			var args map[string]interface{}
			if len(call.Input) > 0 {
				if err := json.Unmarshal(call.Input, &args); err != nil {
					results[i] = &models.ToolInvocationResult{
						ToolName:  call.Name,
						Output:    fmt.Sprintf("invalid tool arguments: %v", err),
						Succeeded: false,
					}
					return nil
				}
			}
			results[i] = e.tools.Invoke(gctx, call.Name, args)
			return nil
		})
	}
	// Invocations never return errors; failures are carried in results.
	_ = g.Wait()

	return results
}

// buildResult assembles the investigation result from the final analysis
// text and the evidence collected along the way. When no root cause can
// be extracted from the text, the correlation fallback gets a chance to
// name one from the evidence.
func (e *Engine) buildResult(description, content string, evidence []models.EvidenceItem, toolCalls []models.ToolCallRecord) *models.InvestigationResult {
	findings := ParseFindings(content)

	if findings.RootCause == "" {
		if e.opts.Fallback != nil {
			if result, ok := e.opts.Fallback.Correlate(description, evidence); ok {
				result.Evidence = append(evidence, result.Evidence...)
				result.Reasoning = content + "\n\n" + result.Reasoning
				result.ToolCalls = toolCalls
				return result
			}
		}
		// A completed incident always carries a root cause, even an
		// inconclusive one.
		return &models.InvestigationResult{
			RootCause:  "Investigation inconclusive: the final analysis did not identify a root cause",
			Confidence: models.ConfidenceLow,
			Evidence:   evidence,
			Reasoning:  "The reasoning service concluded without naming a root cause and no correlation rule matched the evidence.",
			ToolCalls:  toolCalls,
		}
	}

	if findings.Evidence != "" {
		evidence = append(evidence, models.EvidenceItem{
			Source:    "agent_analysis",
			Content:   findings.Evidence,
			Timestamp: e.now().UTC(),
		})
	}

	return &models.InvestigationResult{
		RootCause:       findings.RootCause,
		Confidence:      findings.Confidence,
		Evidence:        evidence,
		Reasoning:       content,
		Recommendations: findings.Recommendations,
		ToolCalls:       toolCalls,
	}
}

func toToolDefinitions(catalog []models.ToolDescriptor) []provider.ToolDefinition {
	if len(catalog) == 0 {
		return nil
	}
	out := make([]provider.ToolDefinition, 0, len(catalog))
	for _, desc := range catalog {
		out = append(out, provider.ToolDefinition{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: map[string]interface{}{
				"type":       desc.InputSchema.Type,
				"properties": desc.InputSchema.Properties,
				"required":   desc.InputSchema.Required,
			},
		})
	}
	return out
}
