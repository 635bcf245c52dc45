package provider

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedProvider replays a fixed sequence of responses. It backs the
// "mock" provider setting for local development and is the workhorse for
// engine tests.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []ScriptedTurn
	next      int

	// Calls records every Chat invocation for assertions.
	Calls []ScriptedCall
}

// ScriptedTurn is one canned response, or an error to return instead.
type ScriptedTurn struct {
	Response *Response
	Err      error
}

// ScriptedCall captures the arguments of one Chat invocation.
type ScriptedCall struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition
}

// NewScriptedProvider creates a provider that replays the given turns in
// order. Calls beyond the script return an error.
func NewScriptedProvider(turns ...ScriptedTurn) *ScriptedProvider {
	return &ScriptedProvider{responses: turns}
}

// TextTurn builds a final-answer turn with no tool calls.
func TextTurn(text string) ScriptedTurn {
	return ScriptedTurn{Response: &Response{
		Content:    text,
		StopReason: StopReasonEndTurn,
	}}
}

// ToolTurn builds a turn requesting the given tool calls.
func ToolTurn(calls ...ToolUseBlock) ScriptedTurn {
	return ScriptedTurn{Response: &Response{
		ToolCalls:  calls,
		StopReason: StopReasonToolUse,
	}}
}

// ErrorTurn builds a turn that fails with the given error.
func ErrorTurn(err error) ScriptedTurn {
	return ScriptedTurn{Err: err}
}

// Chat implements Provider.Chat by replaying the script.
func (p *ScriptedProvider) Chat(ctx context.Context, systemPrompt string, messages []Message, tools []ToolDefinition) (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, ScriptedCall{
		SystemPrompt: systemPrompt,
		Messages:     append([]Message(nil), messages...),
		Tools:        append([]ToolDefinition(nil), tools...),
	})

	if p.next >= len(p.responses) {
		return nil, fmt.Errorf("scripted provider exhausted after %d turns", len(p.responses))
	}
	turn := p.responses[p.next]
	p.next++

	if turn.Err != nil {
		return nil, turn.Err
	}
	return turn.Response, nil
}

// Name implements Provider.Name.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Model implements Provider.Model.
func (p *ScriptedProvider) Model() string {
	return "scripted-v1"
}

// CallCount returns the number of Chat invocations so far.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
