package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsloop/triage/internal/config"
	"github.com/opsloop/triage/internal/metrics"
)

func newTestInvoker(t *testing.T, sessions map[string]*fakeSession, timeout time.Duration) *Invoker {
	t.Helper()
	r := newTestRegistry(sessions)
	cfgs := make([]config.ProviderConfig, 0, len(sessions))
	for name := range sessions {
		cfgs = append(cfgs, providerCfg(name))
	}
	require.NoError(t, r.Initialize(context.Background(), cfgs))
	return NewInvoker(r, timeout, metrics.NewMetrics(prometheus.NewRegistry()))
}

func TestInvoke_Success(t *testing.T) {
	s := &fakeSession{
		tools: []mcptypes.Tool{fakeTool("get_pod_details")},
		callFunc: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			assert.Equal(t, "get_pod_details", req.Params.Name)
			return textResult(`{"status": "CrashLoopBackOff"}`), nil
		},
	}
	inv := newTestInvoker(t, map[string]*fakeSession{"k8s": s}, time.Second)

	result := inv.Invoke(context.Background(), "get_pod_details", map[string]interface{}{"target": "db-0"})
	require.NotNil(t, result)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "get_pod_details", result.ToolName)
	assert.Contains(t, result.Output, "CrashLoopBackOff")
	assert.Equal(t, "db-0", result.Arguments["target"])
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestInvoke_UnknownTool(t *testing.T) {
	inv := newTestInvoker(t, map[string]*fakeSession{
		"k8s": {tools: []mcptypes.Tool{fakeTool("get_pod_details")}},
	}, time.Second)

	result := inv.Invoke(context.Background(), "no_such_tool", nil)
	require.NotNil(t, result)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Output, "no_such_tool")
}

func TestInvoke_TransportError(t *testing.T) {
	s := &fakeSession{
		tools: []mcptypes.Tool{fakeTool("query_metrics")},
		callFunc: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			return nil, errors.New("broken pipe")
		},
	}
	inv := newTestInvoker(t, map[string]*fakeSession{"prom": s}, time.Second)

	result := inv.Invoke(context.Background(), "query_metrics", nil)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Output, "broken pipe")
}

func TestInvoke_ToolReportedError(t *testing.T) {
	s := &fakeSession{
		tools: []mcptypes.Tool{fakeTool("get_pod_logs")},
		callFunc: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			return &mcptypes.CallToolResult{
				IsError: true,
				Content: []mcptypes.Content{
					mcptypes.TextContent{Type: "text", Text: "pod not found"},
				},
			}, nil
		},
	}
	inv := newTestInvoker(t, map[string]*fakeSession{"k8s": s}, time.Second)

	result := inv.Invoke(context.Background(), "get_pod_logs", map[string]interface{}{"target": "ghost"})
	assert.False(t, result.Succeeded)
	assert.Equal(t, "pod not found", result.Output)
}

func TestInvoke_Timeout(t *testing.T) {
	s := &fakeSession{
		tools: []mcptypes.Tool{fakeTool("slow_tool")},
		callFunc: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	inv := newTestInvoker(t, map[string]*fakeSession{"slow": s}, 50*time.Millisecond)

	start := time.Now()
	result := inv.Invoke(context.Background(), "slow_tool", nil)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Output, "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInvoke_CallerDeadlineNotLabeledAsToolTimeout(t *testing.T) {
	s := &fakeSession{
		tools: []mcptypes.Tool{fakeTool("slow_tool")},
		callFunc: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	inv := newTestInvoker(t, map[string]*fakeSession{"slow": s}, time.Minute)

	// The caller's own deadline expires long before the invoker's.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result := inv.Invoke(ctx, "slow_tool", nil)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Output, "call failed")
	assert.NotContains(t, result.Output, "timed out after")
}

func TestInvoke_NilResult(t *testing.T) {
	s := &fakeSession{
		tools: []mcptypes.Tool{fakeTool("odd_tool")},
		callFunc: func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			return nil, nil
		},
	}
	inv := newTestInvoker(t, map[string]*fakeSession{"odd": s}, time.Second)

	result := inv.Invoke(context.Background(), "odd_tool", nil)
	assert.False(t, result.Succeeded)
	assert.Contains(t, result.Output, "no result")
}

func TestFlattenContent_MixedBlocks(t *testing.T) {
	out := flattenContent([]mcptypes.Content{
		mcptypes.TextContent{Type: "text", Text: "part one "},
		mcptypes.TextContent{Type: "text", Text: "part two"},
	})
	assert.Equal(t, "part one part two", out)

	out = flattenContent([]mcptypes.Content{
		mcptypes.ImageContent{Type: "image"},
	})
	assert.Contains(t, out, "unsupported content type")
}
